package planner

import (
	"fmt"
	"os"
	"strings"

	"github.com/mautops/change-gin/internal/change"
	"gopkg.in/yaml.v3"
)

type playbookFile struct {
	Version   int                 `yaml:"version"`
	Playbooks map[string]Playbook `yaml:"playbooks"`
}

// LoadPlaybooks 从 YAML 文件加载回滚步骤覆盖
//
// 文件格式:
//
//	version: 1
//	playbooks:
//	  infrastructure:
//	    duration_minutes: 45
//	    steps:
//	      - Drain traffic
//	      - Restore previous stack
func LoadPlaybooks(path string) (map[change.Type]Playbook, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read playbook file: %w", err)
	}

	var file playbookFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse playbook file: %w", err)
	}

	if file.Version != 1 {
		return nil, fmt.Errorf("unsupported playbook version: %d", file.Version)
	}

	out := make(map[change.Type]Playbook, len(file.Playbooks))
	for name, pb := range file.Playbooks {
		t := change.Type(strings.TrimSpace(name))
		if t != defaultKey && !t.IsValid() {
			return nil, fmt.Errorf("unknown change type in playbook: %s", name)
		}
		if len(pb.Steps) == 0 {
			return nil, fmt.Errorf("playbook %s has no steps", name)
		}
		if pb.DurationMinutes <= 0 {
			return nil, fmt.Errorf("playbook %s must have a positive duration", name)
		}
		out[t] = pb
	}
	return out, nil
}
