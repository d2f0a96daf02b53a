package intent

import (
	"testing"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		request string
		want    []Bucket
	}{
		{
			name:    "ui styling request",
			request: "fix the login button styling",
			want:    []Bucket{BucketUI, BucketBehavior},
		},
		{
			name:    "no keywords defaults to behavior",
			request: "something vague entirely",
			want:    []Bucket{BucketBehavior},
		},
		{
			name:    "data request",
			request: "add a migration for the users schema",
			want:    []Bucket{BucketData},
		},
		{
			name:    "testing request",
			request: "the e2e suite is flaky",
			want:    []Bucket{BucketTesting},
		},
		{
			name:    "security request",
			request: "rotate the auth token secret",
			want:    []Bucket{BucketSecurity},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.request)
			if len(got.Buckets) != len(tt.want) {
				t.Fatalf("Detect(%q).Buckets = %v, want %v", tt.request, got.Buckets, tt.want)
			}
			for i, b := range tt.want {
				if got.Buckets[i] != b {
					t.Errorf("bucket[%d] = %s, want %s", i, got.Buckets[i], b)
				}
			}
		})
	}
}

func TestDetectInfraNeedsBaseKeyword(t *testing.T) {
	// "build" alone is conditional, it must not trigger infra by itself.
	got := Detect("build the login page")
	if got.Has(BucketInfra) {
		t.Errorf("conditional keyword alone triggered infra: %v", got.Buckets)
	}

	got = Detect("fix the docker build pipeline")
	if !got.Has(BucketInfra) {
		t.Errorf("base + conditional keywords did not trigger infra: %v", got.Buckets)
	}
}

func TestDetectObservabilityDiscardsLoggingOnly(t *testing.T) {
	got := Detect("add logging to the handler")
	if got.Has(BucketObservability) {
		t.Errorf("pure logging mention triggered observability: %v", got.Buckets)
	}

	got = Detect("wire the logger into the tracing spans")
	if !got.Has(BucketObservability) {
		t.Errorf("tracing mention did not trigger observability: %v", got.Buckets)
	}
}

func TestDetectAlwaysYieldsABucket(t *testing.T) {
	for _, req := range []string{"", "zzz", "???!!!"} {
		if got := Detect(req); len(got.Buckets) == 0 {
			t.Errorf("Detect(%q) returned no buckets", req)
		}
	}
}

func TestSignalsOnly(t *testing.T) {
	sig := Detect("change the css theme")
	if !sig.Only(BucketUI) {
		t.Errorf("expected UI-only signals, got %v", sig.Buckets)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want Facet
	}{
		{"src/components/Login.tsx", FacetFrontend},
		{"internal/auth/session.go", FacetSecurity},
		{"pkg/server/handler_test.go", FacetTest},
		{".github/workflows/ci.yml", FacetInfra},
		{"docs/setup.md", FacetDocumentation},
		{"config/app.yaml", FacetConfig},
		{"internal/store/db.go", FacetBackend},
		{"bench/load_bench.go", FacetPerformance},
		{"internal/metrics/counters.go", FacetObservability},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if !HasFacet(tt.path, tt.want) {
				t.Errorf("Classify(%q) = %v, missing %s", tt.path, Classify(tt.path), tt.want)
			}
		})
	}
}

func TestClassifyFrontendScriptIsNotBackend(t *testing.T) {
	got := Classify("src/components/Login.ts")
	for _, f := range got {
		if f == FacetBackend {
			t.Errorf("frontend .ts file classified as backend: %v", got)
		}
	}
}

func TestIsDocPath(t *testing.T) {
	if !IsDocPath("README.md") {
		t.Error("README.md not a doc path")
	}
	if IsDocPath("internal/server/main.go") {
		t.Error("main.go classified as doc path")
	}
}

func TestScriptCompanions(t *testing.T) {
	got := ScriptCompanions("src/login.css")
	want := []string{"src/login.ts", "src/login.tsx", "src/login.js", "src/login.jsx"}
	if len(got) != len(want) {
		t.Fatalf("ScriptCompanions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("companion[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDocFlavored(t *testing.T) {
	sig := Detect("update the readme installation section")
	if !DocFlavored("update the readme installation section", sig) {
		t.Error("readme request not doc-flavored")
	}

	sig = Detect("fix the login button styling")
	if DocFlavored("fix the login button styling", sig) {
		t.Error("ui request wrongly doc-flavored")
	}
}
