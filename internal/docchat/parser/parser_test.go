package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextParser_Parse(t *testing.T) {
	p := NewTextParser()
	ctx := context.Background()

	result, err := p.Parse(ctx, "notes.txt", []byte("line one\r\nline two\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pages)
	assert.Equal(t, "line one\nline two", result.Text())
}

func TestTextParser_Parse_Errors(t *testing.T) {
	p := NewTextParser()
	ctx := context.Background()

	_, err := p.Parse(ctx, "empty.txt", nil)
	assert.Error(t, err)

	_, err = p.Parse(ctx, "blank.txt", []byte("   \n\t "))
	assert.Error(t, err)

	_, err = p.Parse(ctx, "binary.txt", []byte{0xff, 0xfe})
	assert.Error(t, err)
}

func TestDispatcher_RoutesByExtension(t *testing.T) {
	d := NewDispatcher()
	d.Register(NewTextParser(), ".txt", ".md")
	ctx := context.Background()

	result, err := d.Parse(ctx, "README.MD", []byte("# markdown content"))
	require.NoError(t, err)
	assert.Equal(t, "# markdown content", result.Text())

	_, err = d.Parse(ctx, "report.pdf", []byte("%PDF"))
	assert.Error(t, err)
}

func TestRemoteParser_Parse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/parse", r.URL.Path)
		assert.Equal(t, "report.pdf", r.URL.Query().Get("filename"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"full text","pages":2,"page_texts":["page one","page two"]}`))
	}))
	defer srv.Close()

	p := NewRemoteParser(srv.URL, 0)
	result, err := p.Parse(context.Background(), "report.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Pages)
	require.Len(t, result.PageTexts, 2)
	assert.Equal(t, "page one", result.PageTexts[0])
}

func TestRemoteParser_Parse_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":"encrypted document"}`))
	}))
	defer srv.Close()

	p := NewRemoteParser(srv.URL, 0)
	_, err := p.Parse(context.Background(), "locked.pdf", []byte("%PDF"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encrypted document")
}

func TestRemoteParser_Parse_TextOnlyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"single blob"}`))
	}))
	defer srv.Close()

	p := NewRemoteParser(srv.URL, 0)
	result, err := p.Parse(context.Background(), "doc.docx", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pages)
	assert.Equal(t, "single blob", result.Text())
}

func TestRemoteParser_Ping(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	assert.NoError(t, NewRemoteParser(healthy.URL, 0).Ping(context.Background()))

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	assert.Error(t, NewRemoteParser(broken.URL, 0).Ping(context.Background()))
}
