package registry

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/forgehold/crucible/internal/manifest"
)

func writeGrantManifest() *manifest.Manifest {
	m := testManifest("writer")
	m.Permissions.Filesystem.Write = []string{"output/*"}
	return m
}

func TestEvaluate(t *testing.T) {
	checker := NewChecker(NewMemStore(), nil)

	tests := []struct {
		name       string
		inst       *Installation
		m          *manifest.Manifest
		wantStatus HealthStatus
		wantIssues int
	}{
		{
			name:       "enabled and quiet",
			inst:       testInstallation("i", "p", "alice"),
			m:          writeGrantManifest(),
			wantStatus: HealthHealthy,
		},
		{
			name: "disabled with write grant warns",
			inst: func() *Installation {
				i := testInstallation("i", "p", "alice")
				i.Enabled = false
				return i
			}(),
			m:          writeGrantManifest(),
			wantStatus: HealthWarning,
			wantIssues: 1,
		},
		{
			name: "disabled without write grant stays healthy",
			inst: func() *Installation {
				i := testInstallation("i", "p", "alice")
				i.Enabled = false
				return i
			}(),
			m:          testManifest("reader"),
			wantStatus: HealthHealthy,
		},
		{
			name: "high error rate is unhealthy",
			inst: func() *Installation {
				i := testInstallation("i", "p", "alice")
				i.Usage = Usage{ExecutionCount: 20, ErrorCount: 15}
				return i
			}(),
			m:          testManifest("flaky"),
			wantStatus: HealthError,
			wantIssues: 1,
		},
		{
			name: "error rate ignored below sample floor",
			inst: func() *Installation {
				i := testInstallation("i", "p", "alice")
				i.Usage = Usage{ExecutionCount: 3, ErrorCount: 3}
				return i
			}(),
			m:          testManifest("young"),
			wantStatus: HealthHealthy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, issues := checker.Evaluate(tt.inst, tt.m)
			if status != tt.wantStatus {
				t.Errorf("status = %q, want %q (issues: %v)", status, tt.wantStatus, issues)
			}
			if len(issues) != tt.wantIssues {
				t.Errorf("issues = %v, want %d", issues, tt.wantIssues)
			}
		})
	}
}

func TestCheckAllPersists(t *testing.T) {
	reg := NewMemStore()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	disabled := testInstallation("inst-1", "item-1", "alice")
	disabled.Enabled = false
	if err := reg.Install(disabled, writeGrantManifest()); err != nil {
		t.Fatal(err)
	}
	healthy := testInstallation("inst-2", "item-2", "alice")
	if err := reg.Install(healthy, testManifest("fine")); err != nil {
		t.Fatal(err)
	}
	if err := reg.RecordExecution("inst-2", 10*time.Millisecond, true, 0); err != nil {
		t.Fatal(err)
	}

	checker := NewChecker(reg, logger)
	if err := checker.CheckAll("alice", ""); err != nil {
		t.Fatalf("CheckAll: %v", err)
	}

	got1, _ := reg.GetInstallation("inst-1", "alice", "")
	if got1.Health.Status != HealthWarning {
		t.Errorf("disabled writer health = %q, want warning", got1.Health.Status)
	}
	got2, _ := reg.GetInstallation("inst-2", "alice", "")
	if got2.Health.Status != HealthHealthy {
		t.Errorf("healthy plugin health = %q", got2.Health.Status)
	}
}
