package planner

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/change-gin/internal/change"
)

// Playbook 单个变更类型的回滚步骤
type Playbook struct {
	Steps           []string `yaml:"steps" json:"steps"`
	DurationMinutes int      `yaml:"duration_minutes" json:"duration_minutes"`
	Automated       *bool    `yaml:"automated,omitempty" json:"automated,omitempty"`
}

// defaultKey 未单独配置的变更类型使用的步骤
const defaultKey change.Type = "default"

// VerificationSteps 所有回滚计划共用的验证清单
var VerificationSteps = []string{
	"Check system health endpoints",
	"Verify critical functionality",
	"Monitor error rates",
	"Validate performance metrics",
	"Confirm compliance status",
}

func builtinPlaybooks() map[change.Type]Playbook {
	return map[change.Type]Playbook{
		change.TypeModelUpdate: {
			Steps: []string{
				"Stop current model serving",
				"Restore previous model version from backup",
				"Verify model integrity",
				"Restart model serving",
				"Run smoke tests",
				"Monitor performance metrics",
			},
			DurationMinutes: 15,
		},
		change.TypeConfiguration: {
			Steps: []string{
				"Backup current configuration",
				"Restore previous configuration from version control",
				"Validate configuration syntax",
				"Apply configuration",
				"Verify service health",
			},
			DurationMinutes: 5,
		},
		change.TypeDataPipeline: {
			Steps: []string{
				"Pause data pipeline",
				"Restore previous pipeline version",
				"Verify data integrity",
				"Resume pipeline",
				"Monitor data flow",
			},
			DurationMinutes: 20,
		},
		defaultKey: {
			Steps: []string{
				"Identify components to rollback",
				"Create backup of current state",
				"Restore previous version",
				"Verify system health",
				"Run validation tests",
			},
			DurationMinutes: 30,
		},
	}
}

// Planner 回滚计划生成器
type Planner struct {
	backupDir string
	playbooks map[change.Type]Playbook
}

// New 创建回滚计划生成器,overrides 按变更类型覆盖内置步骤
func New(backupDir string, overrides map[change.Type]Playbook) *Planner {
	if backupDir == "" {
		backupDir = "backups"
	}
	playbooks := builtinPlaybooks()
	for t, pb := range overrides {
		if len(pb.Steps) == 0 {
			continue
		}
		playbooks[t] = pb
	}
	return &Planner{
		backupDir: backupDir,
		playbooks: playbooks,
	}
}

// Plan 为变更生成回滚计划
func (p *Planner) Plan(rec *change.Record, now time.Time) *change.RollbackPlan {
	pb, ok := p.playbooks[rec.ChangeType]
	if !ok {
		pb = p.playbooks[defaultKey]
	}

	automated := true
	if pb.Automated != nil {
		automated = *pb.Automated
	}

	steps := make([]string, len(pb.Steps))
	copy(steps, pb.Steps)
	verification := make([]string, len(VerificationSteps))
	copy(verification, VerificationSteps)

	return &change.RollbackPlan{
		ChangeID:                 rec.ID,
		CreatedAt:                now,
		RollbackSteps:            steps,
		VerificationSteps:        verification,
		BackupLocations:          []string{p.backupLocation(rec.ID, now)},
		EstimatedDurationMinutes: pb.DurationMinutes,
		Automated:                automated,
	}
}

// backupLocation 备份路径,附加短 uuid 保证同一秒内多次生成也不重复
func (p *Planner) backupLocation(changeID string, now time.Time) string {
	name := fmt.Sprintf("backup_%s_%s_%s.json", changeID, now.Format("20060102_150405"), uuid.New().String()[:8])
	return filepath.Join(p.backupDir, name)
}
