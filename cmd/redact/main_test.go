package main

import (
	"testing"

	"github.com/joseph-ayodele/receipts-redactor/internal/common"
	"github.com/joseph-ayodele/receipts-redactor/internal/matcher"
)

func TestPolicyFlagDefaultsToConfig(t *testing.T) {
	tests := []struct {
		name      string
		envPolicy string
		args      []string
		want      matcher.Policy
	}{
		{name: "config policy", envPolicy: "first-above-threshold", want: matcher.PolicyFirstAboveThreshold},
		{name: "flag overrides config", envPolicy: "first-above-threshold", args: []string{"--policy", "best"}, want: matcher.PolicyBestOfN},
		{name: "config default", envPolicy: "best-of-n", want: matcher.PolicyBestOfN},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &common.Config{Pipeline: common.PipelineConfig{MatchPolicy: tt.envPolicy}}
			var o options
			fs := newFlagSet(cfg, &o)
			if err := fs.Parse(append([]string{"-i", "in", "-o", "out"}, tt.args...)); err != nil {
				t.Fatalf("parse: %v", err)
			}
			got, err := matcher.ParsePolicy(o.policy)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got policy %q, want %q", got, tt.want)
			}
		})
	}
}
