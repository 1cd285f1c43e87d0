package upload

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tidechat/realtime/internal/domain"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

const pdfBody = "%PDF-1.4\n%%EOF\n"

func uploadServer(t *testing.T, url string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		_, _, err := r.FormFile("file")
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"url": url})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func Test_Upload_Posts_Decoded_Attachment(t *testing.T) {
	req := require.New(t)
	srv := uploadServer(t, "https://cdn.test/i/1.png")

	client := NewClient(srv.URL, 5*time.Second, 1<<20)
	data := base64.StdEncoding.EncodeToString(pngBytes)

	url, err := client.Upload(context.Background(), KindImage, data)
	req.NoError(err)
	req.Equal("https://cdn.test/i/1.png", url)
}

func Test_Upload_Accepts_Data_URI(t *testing.T) {
	req := require.New(t)
	srv := uploadServer(t, "https://cdn.test/d/1.pdf")

	client := NewClient(srv.URL, 5*time.Second, 1<<20)
	data := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte(pdfBody))

	url, err := client.Upload(context.Background(), KindPDF, data)
	req.NoError(err)
	req.Equal("https://cdn.test/d/1.pdf", url)
}

func Test_Upload_Rejects_Kind_Mismatch(t *testing.T) {
	req := require.New(t)
	srv := uploadServer(t, "unused")

	client := NewClient(srv.URL, 5*time.Second, 1<<20)
	data := base64.StdEncoding.EncodeToString([]byte(pdfBody))

	_, err := client.Upload(context.Background(), KindImage, data)
	req.Error(err)
	req.Equal(domain.KindUploadFailed, domain.KindOf(err))
}

func Test_Upload_Rejects_Invalid_Base64(t *testing.T) {
	req := require.New(t)
	client := NewClient("http://unused", time.Second, 1<<20)

	_, err := client.Upload(context.Background(), KindImage, "not base64 !!!")
	req.Equal(domain.KindUploadFailed, domain.KindOf(err))
}

func Test_Upload_Rejects_Oversized_Attachment(t *testing.T) {
	req := require.New(t)
	client := NewClient("http://unused", time.Second, 4)

	data := base64.StdEncoding.EncodeToString(pngBytes)
	_, err := client.Upload(context.Background(), KindImage, data)
	req.Equal(domain.KindUploadFailed, domain.KindOf(err))
}

func Test_Upload_Surfaces_Service_Failure(t *testing.T) {
	req := require.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "disk full", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, 5*time.Second, 1<<20)
	data := base64.StdEncoding.EncodeToString(pngBytes)

	_, err := client.Upload(context.Background(), KindImage, data)
	req.Equal(domain.KindUploadFailed, domain.KindOf(err))
}
