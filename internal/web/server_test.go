package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"yashubustudio/simmatch/simmatch"
)

const (
	ideasCSV  = "Décrire votre idée\nLogin page fails\nExport to PDF\n"
	issuesCSV = "Issue key,Summary\nJ-1,PDF export broken\nJ-2,Login error\n"
)

// topicBackend gives texts sharing a topic word the same unit vector.
type topicBackend struct{}

func (topicBackend) Encode(_ context.Context, texts []string) ([][]float32, error) {
	topics := []string{"login", "export"}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, len(topics)+1)
		vec[len(topics)] = 1
		for d, topic := range topics {
			if strings.Contains(strings.ToLower(t), topic) {
				vec = make([]float32, len(topics)+1)
				vec[d] = 1
				break
			}
		}
		out[i] = vec
	}
	return out, nil
}

func (topicBackend) Close() error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	var logs bytes.Buffer
	logger := log.New(&logs, "", 0)
	svc, err := simmatch.NewService(simmatch.NewCachedEmbedder(topicBackend{}, "topics"), simmatch.Config{}, logger)
	require.NoError(t, err)
	return NewServer(svc, svc.Config(), logger)
}

type upload struct {
	field, filename, content string
}

func multipartRequest(t *testing.T, target string, files []upload, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = io.WriteString(part, f.content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func bothFiles() []upload {
	return []upload{
		{"left", "usine.csv", ideasCSV},
		{"right", "jira.csv", issuesCSV},
	}
}

func doJSON(t *testing.T, srv *Server, req *http.Request, out any) int {
	t.Helper()
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestIndex(t *testing.T) {
	srv := newTestServer(t)
	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `value="0.70"`)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestCompareAPIAndDownload(t *testing.T) {
	srv := newTestServer(t)

	var created CompareResponse
	status := doJSON(t, srv, multipartRequest(t, "/api/v1/compare", bothFiles(), map[string]string{"rightName": "JIRA"}), &created)
	require.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, float32(0.7), created.Threshold)
	assert.Equal(t, "usine", created.Left.Name)
	assert.Equal(t, "Décrire votre idée", created.Left.TextColumn)
	assert.Equal(t, []string{"Issue key"}, created.Right.IDColumns)
	assert.Equal(t, 4, created.Pairs)
	require.Len(t, created.Matches, 2)
	assert.Equal(t, []string{"J-2"}, created.Matches[0].RightIDs)
	assert.Equal(t, []string{
		"Similarity between sentence 1 of usine and sentence 2 of JIRA: 1.00",
		"Similarity between sentence 2 of usine and sentence 1 of JIRA: 1.00",
	}, created.Report)
	assert.Equal(t, "/api/v1/results/"+created.ID+"/download", created.DownloadURL)

	var fetched CompareResponse
	status = doJSON(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/results/"+created.ID, nil), &fetched)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, created.Matches, fetched.Matches)

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, created.DownloadURL, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxMIME, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "matches_"+created.ID+".xlsx")

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Matches")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "usine row", rows[0][0])
	assert.Equal(t, "Similarity", rows[0][len(rows[0])-1])
}

func TestCompareAPIValidation(t *testing.T) {
	srv := newTestServer(t)
	cases := []struct {
		name   string
		files  []upload
		fields map[string]string
		status int
	}{
		{"missing right file", bothFiles()[:1], nil, http.StatusBadRequest},
		{"unsupported extension", []upload{{"left", "usine.txt", ideasCSV}, bothFiles()[1]}, nil, http.StatusBadRequest},
		{"threshold out of range", bothFiles(), map[string]string{"threshold": "1.5"}, http.StatusBadRequest},
		{"threshold not a number", bothFiles(), map[string]string{"threshold": "high"}, http.StatusBadRequest},
		{"threshold NaN", bothFiles(), map[string]string{"threshold": "NaN"}, http.StatusBadRequest},
		{"threshold infinite", bothFiles(), map[string]string{"threshold": "+Inf"}, http.StatusBadRequest},
		{"unknown column", bothFiles(), map[string]string{"rightColumn": "Body"}, http.StatusBadRequest},
		{"empty file", []upload{{"left", "usine.csv", ""}, bothFiles()[1]}, nil, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var body map[string]string
			status := doJSON(t, srv, multipartRequest(t, "/api/v1/compare", tc.files, tc.fields), &body)
			assert.Equal(t, tc.status, status)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestCompareAPIOptions(t *testing.T) {
	srv := newTestServer(t)
	var created CompareResponse
	status := doJSON(t, srv, multipartRequest(t, "/api/v1/compare", bothFiles(), map[string]string{
		"threshold":      "-1",
		"sort":           "score",
		"rightColumn":    "summary",
		"rightIdColumns": " ",
	}), &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Len(t, created.Matches, 4)
	assert.Equal(t, float32(1), created.Matches[0].Score)
	assert.Equal(t, float32(1), created.Matches[1].Score)
	assert.Len(t, created.Best, 2)
}

func TestCompareAPIZeroThreshold(t *testing.T) {
	srv := newTestServer(t)
	var created CompareResponse
	status := doJSON(t, srv, multipartRequest(t, "/api/v1/compare", bothFiles(), map[string]string{"threshold": "0"}), &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, float32(0), created.Threshold)
	assert.Len(t, created.Matches, 4)
}

func TestResultNotFound(t *testing.T) {
	srv := newTestServer(t)
	for _, id := range []string{"nope", uuid.NewString()} {
		status := doJSON(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/results/"+id, nil), nil)
		assert.Equal(t, http.StatusNotFound, status)
		status = doJSON(t, srv, httptest.NewRequest(http.MethodGet, "/api/v1/results/"+id+"/download", nil), nil)
		assert.Equal(t, http.StatusNotFound, status)
	}
}

func TestCompareForm(t *testing.T) {
	srv := newTestServer(t)
	resp, err := srv.App().Test(multipartRequest(t, "/compare", bothFiles(), nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Similarity between sentence 1 of usine and sentence 2 of jira: 1.00")
	assert.Contains(t, string(body), "/download")
	assert.Contains(t, string(body), "<th>Similarity</th>")

	resp, err = srv.App().Test(multipartRequest(t, "/compare", bothFiles()[:1], nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "right file is required")
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)
	var health map[string]any
	status := doJSON(t, srv, httptest.NewRequest(http.MethodGet, "/healthz", nil), &health)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", health["status"])

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "simmatch_pairs_scored_total")
}

func TestResultStore(t *testing.T) {
	store := NewResultStore(0)
	entry := store.Put(simmatch.Result{Threshold: 0.7})
	got, err := store.Get(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, float32(0.7), got.Result.Threshold)
	assert.Equal(t, 1, store.Len())

	_, err = store.Get(uuid.NewString())
	assert.ErrorIs(t, err, ErrResultNotFound)
}
