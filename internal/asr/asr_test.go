package asr

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	s := httptest.NewServer(h)
	t.Cleanup(s.Close)
	return s
}

func request(url string) Request {
	return Request{Audio: []byte("RIFFfake"), FileName: "audio.wav", Language: "en", ServerURL: url}
}

// hang blocks until the client gives up or a second passes.
func hang(r *http.Request) {
	select {
	case <-r.Context().Done():
	case <-time.After(time.Second):
	}
}

func TestTranscribeSendsMultipartForm(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
			return
		}
		for k, want := range map[string]string{"task": "transcribe", "language": "en", "output": "json"} {
			if got := r.FormValue(k); got != want {
				t.Errorf("field %s = %q, want %q", k, got, want)
			}
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if string(data) != "RIFFfake" || hdr.Filename != "audio.wav" {
			t.Errorf("unexpected file %q named %q", data, hdr.Filename)
		}
		if ct := hdr.Header.Get("Content-Type"); ct != "audio/wav" {
			t.Errorf("file content type %q", ct)
		}
		_, _ = w.Write([]byte(`{"text":" hello world ","segments":[{"start":0,"end":1.5,"text":"hello world"}]}`))
	})

	req := request(srv.URL + "/")
	req.APIKey = "secret"
	res, err := New().Transcribe(context.Background(), req)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Text != "hello world" || res.Empty() {
		t.Fatalf("unexpected text %q", res.Text)
	}
	if len(res.Segments) != 1 || res.Segments[0].End != 1.5 {
		t.Fatalf("unexpected segments %+v", res.Segments)
	}
	if len(res.Raw) == 0 {
		t.Fatal("raw body not kept")
	}
}

func TestTranscribeNoAuthorizationWithoutKey(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["Authorization"]; ok {
			t.Error("authorization header sent without a key")
		}
		_, _ = w.Write([]byte(`{"text":"x"}`))
	})
	if _, err := New().Transcribe(context.Background(), request(srv.URL)); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
}

func TestTranscribeEmptyTextIsNotAnError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"   \n"}`))
	})
	res, err := New().Transcribe(context.Background(), request(srv.URL))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !res.Empty() {
		t.Fatalf("expected empty result, got %q", res.Text)
	}
}

func TestTranscribeServerError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("model not loaded"))
	})
	_, err := New().Transcribe(context.Background(), request(srv.URL))
	var se *ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServerError, got %T: %v", err, err)
	}
	if se.Status != http.StatusInternalServerError || string(se.Body) != "model not loaded" {
		t.Fatalf("unexpected server error %+v", se)
	}
	if !strings.Contains(se.Error(), "500") {
		t.Fatalf("error %q lacks status", se.Error())
	}
}

func TestTranscribeTimeout(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) { hang(r) })
	_, err := New(WithTimeout(50*time.Millisecond)).Transcribe(context.Background(), request(srv.URL))
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected TimeoutError, got %T: %v", err, err)
	}
	if te.Timeout != 50*time.Millisecond {
		t.Fatalf("unexpected timeout %v", te.Timeout)
	}
}

func TestTranscribeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New().Transcribe(context.Background(), request(url))
	var ce *ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConnectionError, got %T: %v", err, err)
	}
}

func TestTranscribeMalformedResponse(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>proxy</html>"))
	})
	_, err := New().Transcribe(context.Background(), request(srv.URL))
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestTranscribeTextPath(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"alternatives":[{"transcript":"from path"}]}]}`))
	})
	c := New(WithTextPath("results[0].alternatives[0].transcript"))
	res, err := c.Transcribe(context.Background(), request(srv.URL))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Text != "from path" {
		t.Fatalf("unexpected text %q", res.Text)
	}
}

func TestTranscribeRequiresServerURL(t *testing.T) {
	if _, err := New().Transcribe(context.Background(), Request{}); err == nil {
		t.Fatal("expected error for empty server URL")
	}
}

func TestProbeSkipsTimedOutPath(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			hang(r)
		case "/health":
			http.NotFound(w, r)
		default:
			t.Errorf("probe continued to %s", r.URL.Path)
		}
	})

	res := New(WithProbeTimeout(50*time.Millisecond)).Probe(context.Background(), srv.URL, "")
	if !res.Reachable {
		t.Fatalf("expected reachable, attempts %+v", res.Attempts)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(res.Attempts))
	}
	var te *TimeoutError
	if !errors.As(res.Attempts[0].Err, &te) {
		t.Fatalf("expected first attempt to time out, got %v", res.Attempts[0].Err)
	}
	if res.Attempts[1].Path != "/health" || res.Attempts[1].Status != http.StatusNotFound {
		t.Fatalf("unexpected second attempt %+v", res.Attempts[1])
	}
}

func TestProbeRequestTimeoutStatusIsNotReachable(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("probe without bearer header")
		}
		if r.URL.Path == "/inference" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusRequestTimeout)
	})
	if !New().TestConnection(context.Background(), srv.URL, "k") {
		t.Fatal("expected 405 on /inference to count as reachable")
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(paths, ",") != "/,/health,/v1/health,/inference" {
		t.Fatalf("unexpected probe order %v", paths)
	}
}

func TestProbeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := New().Probe(context.Background(), url, "")
	if res.Reachable {
		t.Fatal("closed server reported reachable")
	}
	if len(res.Attempts) != len(ProbePaths) {
		t.Fatalf("expected %d attempts, got %d", len(ProbePaths), len(res.Attempts))
	}
}

func TestFormatResponseTruncates(t *testing.T) {
	if got := formatResponse(nil); got != "<empty>" {
		t.Fatalf("got %q", got)
	}
	long := strings.Repeat("a", 1500)
	if got := formatResponse([]byte(long)); !strings.Contains(got, "truncated, total 1500 bytes") {
		t.Fatalf("long body not truncated: %q", got[len(got)-40:])
	}
	if got := formatResponse([]byte{0xff, 0xfe}); got != "<binary 2 bytes, hex: fffe>" {
		t.Fatalf("got %q", got)
	}
}
