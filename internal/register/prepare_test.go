package register

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/schoolpass/registrator/internal/backend"
)

func TestGenerateEmployeeNo(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		no := GenerateEmployeeNo()
		if len(no) != 10 || !isNumeric(no) {
			t.Fatalf("GenerateEmployeeNo() = %q, want 10 digits", no)
		}
		seen[no] = true
	}
	if len(seen) < 2 {
		t.Error("GenerateEmployeeNo() repeats itself")
	}
}

func TestIsNumeric(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"1234567890", true},
		{"007", true},
		{"", false},
		{"12a4", false},
		{" 123", false},
	}
	for _, tt := range tests {
		if got := isNumeric(tt.input); got != tt.want {
			t.Errorf("isNumeric(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPrepareFullName(t *testing.T) {
	p, err := prepare(Options{Name: "Fallback Name", FirstName: " Alice ", LastName: " Smith "})
	if err != nil {
		t.Fatalf("prepare() error = %v", err)
	}
	if p.fullName != "Smith Alice" {
		t.Errorf("fullName = %q, want last-first order", p.fullName)
	}

	p, err = prepare(Options{Name: " Plain Name "})
	if err != nil {
		t.Fatalf("prepare() error = %v", err)
	}
	if p.fullName != "Plain Name" {
		t.Errorf("fullName = %q, want the trimmed display name", p.fullName)
	}
}

func TestPrepareRequiresSchoolWithBackend(t *testing.T) {
	_, err := prepare(Options{Name: "x", BackendURL: "https://backend.test"})
	if err == nil || err.Error() != "schoolId is required when backendUrl is set" {
		t.Errorf("error = %v", err)
	}
}

func TestPrepareExplicitSelection(t *testing.T) {
	p, err := prepare(Options{
		Name:    "x",
		Targets: backend.ExplicitTargets([]string{" bk-1 ", "", "bk-2"}),
	})
	if err != nil {
		t.Fatalf("prepare() error = %v", err)
	}
	if p.explicitDBOnly {
		t.Error("explicitDBOnly set despite non-empty selection")
	}
	if len(p.requestedTargetBackendIDs) != 2 {
		t.Errorf("requested = %v, want trimmed pair", p.requestedTargetBackendIDs)
	}
	if _, ok := p.requestedTargetBackendIDs["bk-1"]; !ok {
		t.Error("bk-1 missing from requested set")
	}

	p, err = prepare(Options{Name: "x", Targets: backend.ExplicitTargets([]string{"  "})})
	if err != nil {
		t.Fatalf("prepare() error = %v", err)
	}
	if !p.explicitDBOnly {
		t.Error("whitespace-only selection should collapse to backend-only")
	}
}

func TestPrepareKeepsGeneratedNumberForNonNumericStudentID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"provisioningId":"p-9","deviceStudentId":"AB-123","studentId":"s-9"}`)
	}))
	defer server.Close()

	p, err := prepare(Options{Name: "x", BackendURL: server.URL, SchoolID: "sch-1"})
	if err != nil {
		t.Fatalf("prepare() error = %v", err)
	}
	if !isNumeric(p.employeeNo) || len(p.employeeNo) != 10 {
		t.Errorf("employeeNo = %q, want the generated number kept", p.employeeNo)
	}
	if p.provisioningID != "p-9" {
		t.Errorf("provisioningID = %s", p.provisioningID)
	}
}

func TestPrepareWrapsBackendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `school not found`)
	}))
	defer server.Close()

	_, err := prepare(Options{Name: "x", BackendURL: server.URL, SchoolID: "sch-1"})
	if err == nil {
		t.Fatal("prepare() ignored a backend failure")
	}
	if !strings.HasPrefix(err.Error(), "Backend provisioning failed: ") {
		t.Errorf("error = %q", err)
	}
	if !strings.Contains(err.Error(), "school not found") {
		t.Errorf("error lost the backend body: %q", err)
	}
}
