package cloud

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/cloudengine/internal/cloudtest"
	"mercator-hq/cloudengine/pkg/cloud/transport"
	"mercator-hq/cloudengine/pkg/evidence"
	"mercator-hq/cloudengine/pkg/flow"
)

type recordingObserver struct {
	mu        sync.Mutex
	calls     []Call
	conflicts int
}

func (o *recordingObserver) ObserveCall(_ context.Context, call Call) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, call)
}

func (o *recordingObserver) ObserveConflicts(_ context.Context, conflicts []evidence.Conflict) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conflicts += len(conflicts)
}

func newTestEngine(t *testing.T, server *cloudtest.Server, cfg Config) *Engine {
	t.Helper()
	if cfg.ResourceKey == "" {
		cfg.ResourceKey = cloudtest.ResourceKey
	}
	cfg.EndPoint = server.URL()
	if cfg.Transport == nil {
		tr, err := transport.NewHTTPTransport(transport.Config{Timeout: 5 * time.Second})
		if err != nil {
			t.Fatalf("NewHTTPTransport() error = %v", err)
		}
		t.Cleanup(func() { _ = tr.Close() })
		cfg.Transport = tr
	}
	engine, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return engine
}

func TestNew_RequiresResourceKey(t *testing.T) {
	_, err := New(Config{EndPoint: "http://localhost"})

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("New() error = %v, want *ConfigError", err)
	}
	if cfgErr.Field != "resource_key" {
		t.Errorf("Field = %q, want resource_key", cfgErr.Field)
	}
}

func TestNew_EndPointPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		env      string
		want     string
	}{
		{"explicit wins", "http://explicit", "http://env/", "http://explicit/"},
		{"environment", "", "http://env", "http://env/"},
		{"default", "", "", DefaultEndPoint},
		{"already normalized", "http://x/", "", "http://x/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvEndPoint, tt.env)

			engine, err := New(Config{
				ResourceKey: "key",
				EndPoint:    tt.explicit,
				Transport:   transport.Func(nil),
			})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if got := engine.BaseURL(); got != tt.want {
				t.Errorf("BaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeBaseURL_Idempotent(t *testing.T) {
	once := NormalizeBaseURL("http://x")
	if once != "http://x/" {
		t.Errorf("NormalizeBaseURL(http://x) = %q", once)
	}
	if twice := NormalizeBaseURL(once); twice != once {
		t.Errorf("NormalizeBaseURL not idempotent: %q", twice)
	}
}

func TestEngine_Process(t *testing.T) {
	server := cloudtest.NewServer()
	defer server.Close()

	observer := &recordingObserver{}
	engine := newTestEngine(t, server, Config{Origin: "51degrees.com", Observer: observer})

	data := flow.NewData(evidence.NewStoreFrom(
		evidence.Entry{Key: "query.User-Agent", Value: "iPhone"},
		evidence.Entry{Key: "header.user-agent", Value: "Android"},
		evidence.Entry{Key: "cookie.id", Value: "c1"},
		evidence.Entry{Key: "header.id", Value: "h1"},
	))

	if err := engine.Process(context.Background(), data); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	result, ok := flow.GetAs[*Data](data, DataKey)
	if !ok {
		t.Fatal("cloud data not stored under the cloud data key")
	}
	if string(result.Raw) != cloudtest.ProcessBody {
		t.Errorf("Raw = %s", result.Raw)
	}
	names, err := result.ModuleNames()
	if err != nil {
		t.Fatalf("ModuleNames() error = %v", err)
	}
	if strings.Join(names, ",") != "device,javascriptProperties" {
		t.Errorf("ModuleNames() = %v", names)
	}

	req, ok := server.LastRequest(cloudtest.ProcessPath(cloudtest.ResourceKey))
	if !ok {
		t.Fatal("no processing request received")
	}
	if req.Method != http.MethodPost {
		t.Errorf("method = %s, want POST", req.Method)
	}
	if got := req.Form.Get("user-agent"); got != "iPhone" {
		t.Errorf("form user-agent = %q, want iPhone", got)
	}
	if got := req.Form.Get("id"); got != "h1" {
		t.Errorf("form id = %q, want h1", got)
	}
	if got := req.Header.Get("Origin"); got != "51degrees.com" {
		t.Errorf("Origin = %q", got)
	}
	if got := req.Header.Get("Content-Type"); got != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", got)
	}

	props, ok := server.LastRequest("/accessibleProperties")
	if !ok || props.Query.Get("resource") != cloudtest.ResourceKey {
		t.Errorf("properties request = %+v", props)
	}
	if props.Header.Get("Origin") != "51degrees.com" {
		t.Error("Origin header missing on schema call")
	}

	observer.mu.Lock()
	defer observer.mu.Unlock()
	if len(observer.calls) != 3 {
		t.Fatalf("observed %d calls, want 3", len(observer.calls))
	}
	wantOrder := []Endpoint{EndpointProperties, EndpointEvidenceKeys, EndpointProcess}
	for i, want := range wantOrder {
		if observer.calls[i].Endpoint != want {
			t.Errorf("call %d endpoint = %s, want %s", i, observer.calls[i].Endpoint, want)
		}
	}
	if observer.calls[2].Conflicts != 1 || observer.conflicts != 1 {
		t.Errorf("conflicts: call = %d, observed = %d, want 1", observer.calls[2].Conflicts, observer.conflicts)
	}
}

func TestEngine_SchemaFetchedOnce(t *testing.T) {
	server := cloudtest.NewServer()
	defer server.Close()

	engine := newTestEngine(t, server, Config{})
	for i := 0; i < 3; i++ {
		data := flow.NewData(evidence.NewStoreFrom(evidence.Entry{Key: "query.user-agent", Value: "x"}))
		if err := engine.Process(context.Background(), data); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	}

	if got := server.Count("/accessibleProperties"); got != 1 {
		t.Errorf("properties fetched %d times, want 1", got)
	}
	if got := server.Count("/evidencekeys"); got != 1 {
		t.Errorf("evidence keys fetched %d times, want 1", got)
	}
	if got := server.Count(cloudtest.ProcessPath(cloudtest.ResourceKey)); got != 3 {
		t.Errorf("process called %d times, want 3", got)
	}
}

func TestEngine_EvidenceKeyFilter(t *testing.T) {
	server := cloudtest.NewServer()
	defer server.Close()

	engine := newTestEngine(t, server, Config{})
	filter, err := engine.EvidenceKeyFilter(context.Background())
	if err != nil {
		t.Fatalf("EvidenceKeyFilter() error = %v", err)
	}
	if !filter.Include("query.user-agent") || !filter.Include("COOKIE.51d_profileids") {
		t.Errorf("filter keys = %v", filter.Keys())
	}
	if filter.Include("header.accept") {
		t.Error("header.accept must not be included")
	}
}

func TestEngine_ServiceErrorOnSuccessStatus(t *testing.T) {
	server := cloudtest.NewServer()
	defer server.Close()
	server.SetResponse(cloudtest.ProcessPath(cloudtest.ResourceKey), cloudtest.Response{
		StatusCode: http.StatusOK,
		Body:       `{"errors":["bad key"]}`,
	})

	engine := newTestEngine(t, server, Config{})
	err := engine.Process(context.Background(), flow.NewData(nil))

	var reqErr *CloudRequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Process() error = %v, want *CloudRequestError", err)
	}
	if !strings.Contains(reqErr.Error(), "bad key") {
		t.Errorf("error %q does not mention the service error", reqErr.Error())
	}
	if reqErr.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", reqErr.StatusCode)
	}
}

func TestEngine_MultipleServiceErrors(t *testing.T) {
	server := cloudtest.NewServer()
	defer server.Close()
	server.SetResponse(cloudtest.ProcessPath(cloudtest.ResourceKey), cloudtest.Response{
		StatusCode: http.StatusOK,
		Body:       `{"errors":["first","second"]}`,
	})

	engine := newTestEngine(t, server, Config{})
	err := engine.Process(context.Background(), flow.NewData(nil))

	var reqErr *CloudRequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Process() error = %v, want *CloudRequestError", err)
	}
	if len(reqErr.Errors) != 2 {
		t.Errorf("Errors = %v", reqErr.Errors)
	}
	if !strings.Contains(reqErr.Message, "'first', 'second'") {
		t.Errorf("Message = %q", reqErr.Message)
	}
}

func TestEngine_NonSuccessStatus(t *testing.T) {
	server := cloudtest.NewServer()
	defer server.Close()
	server.SetResponse(cloudtest.ProcessPath(cloudtest.ResourceKey), cloudtest.Response{
		StatusCode: http.StatusForbidden,
		Body:       `{"device":{"ismobile":true}}`,
		Headers:    map[string]string{"X-Reason": "quota"},
	})

	engine := newTestEngine(t, server, Config{})
	err := engine.Process(context.Background(), flow.NewData(nil))

	var reqErr *CloudRequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Process() error = %v, want *CloudRequestError", err)
	}
	if reqErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", reqErr.StatusCode)
	}
	if reqErr.Header.Get("X-Reason") != "quota" {
		t.Error("response headers not carried on the error")
	}
	if string(reqErr.Body) != `{"device":{"ismobile":true}}` {
		t.Errorf("Body = %s", reqErr.Body)
	}
	if !strings.Contains(reqErr.Message, "returned status code '403'") {
		t.Errorf("Message = %q", reqErr.Message)
	}
}

func TestEngine_EmptyBody(t *testing.T) {
	server := cloudtest.NewServer()
	defer server.Close()
	server.SetResponse(cloudtest.ProcessPath(cloudtest.ResourceKey), cloudtest.Response{StatusCode: http.StatusOK})

	engine := newTestEngine(t, server, Config{})
	err := engine.Process(context.Background(), flow.NewData(nil))

	var reqErr *CloudRequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Process() error = %v, want *CloudRequestError", err)
	}
	if !strings.HasPrefix(reqErr.Message, "No data in response from cloud service at ") {
		t.Errorf("Message = %q", reqErr.Message)
	}
}

func TestEngine_TransportFailure(t *testing.T) {
	refused := errors.New("connection refused")
	engine, err := New(Config{
		ResourceKey: "key",
		EndPoint:    "http://cloud.invalid",
		Transport: transport.Func(func(context.Context, *transport.Request) (*transport.Response, error) {
			return nil, refused
		}),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	err = engine.Process(context.Background(), flow.NewData(nil))

	var reqErr *CloudRequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Process() error = %v, want *CloudRequestError", err)
	}
	if reqErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", reqErr.StatusCode)
	}
	if !errors.Is(err, refused) {
		t.Error("transport error not wrapped")
	}
}

func TestEngine_FailedSchemaFetchIsRetried(t *testing.T) {
	server := cloudtest.NewServer()
	defer server.Close()
	server.SetResponse("/accessibleProperties", cloudtest.Response{StatusCode: http.StatusInternalServerError, Body: "down"})

	engine := newTestEngine(t, server, Config{})
	if err := engine.Prime(context.Background()); err == nil {
		t.Fatal("Prime() succeeded against a failing service")
	}
	if props, _ := engine.Schema().Loaded(); props {
		t.Fatal("failed fetch left properties cached")
	}

	server.SetResponse("/accessibleProperties", cloudtest.Response{StatusCode: http.StatusOK, Body: cloudtest.PropertiesBody})
	if err := engine.Prime(context.Background()); err != nil {
		t.Fatalf("Prime() error = %v", err)
	}
	if got := server.Count("/accessibleProperties"); got != 2 {
		t.Errorf("properties fetched %d times, want 2", got)
	}
}
