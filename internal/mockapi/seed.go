package mockapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/trends_dashboard/internal/hash"
	"github.com/Skotchmaster/trends_dashboard/internal/models"
)

// SeedPassword is the password of every seeded account.
const SeedPassword = "password"

var seedNamespace = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")

func seedID(kind string, i int) string {
	return uuid.NewSHA1(seedNamespace, []byte(fmt.Sprintf("%s-%d", kind, i))).String()
}

var seedStatuses = []string{"PENDING", "RUNNING", "FINISHED", "FAILED"}

const seedExecutions = 150

// Seed inserts demo accounts, scripts and executions unless users exist.
func (r *GormRepo) Seed(ctx context.Context, now time.Time) error {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	pw, err := hash.HashPassword(SeedPassword)
	if err != nil {
		return err
	}
	now = now.UTC().Truncate(time.Second)

	users := []models.User{
		{ID: seedID("user", 0), Email: "superadmin@example.org", Name: "Super Admin", Role: "SUPERADMIN", Institution: "Trends.Earth", Country: "US"},
		{ID: seedID("user", 1), Email: "admin@example.org", Name: "Admin User", Role: "ADMIN", Institution: "Conservation International", Country: "KE"},
		{ID: seedID("user", 2), Email: "user@example.org", Name: "Regular User", Role: "USER", Institution: "University", Country: "BR"},
	}
	for i := range users {
		users[i].PasswordHash = pw
		users[i].CreatedAt = now.AddDate(0, -i-1, 0)
		users[i].UpdatedAt = now.AddDate(0, 0, -i)
	}

	scripts := make([]models.Script, 0, 6)
	for i := range 6 {
		owner := users[i%len(users)]
		status := "SUCCESS"
		if i%3 == 2 {
			status = "FAIL"
		}
		scripts = append(scripts, models.Script{
			ID:          seedID("script", i),
			Name:        fmt.Sprintf("sdg-15-3-1-sub-indicators-%d", i+1),
			Slug:        fmt.Sprintf("sdg-15-3-1-%d", i+1),
			Description: "Land degradation sub-indicators",
			Status:      status,
			Public:      i%2 == 0,
			UserID:      owner.ID,
			UserName:    owner.Name,
			CreatedAt:   now.AddDate(0, 0, -30+i),
			UpdatedAt:   now.AddDate(0, 0, -10+i),
		})
	}

	executions := make([]models.Execution, 0, seedExecutions)
	var logs []models.Log
	for i := range seedExecutions {
		owner := users[i%len(users)]
		script := scripts[i%len(scripts)]
		status := seedStatuses[i%len(seedStatuses)]
		start := now.Add(-time.Duration(i) * 37 * time.Minute)

		ex := models.Execution{
			ID:         seedID("execution", i),
			ScriptID:   script.ID,
			ScriptName: script.Name,
			UserID:     owner.ID,
			UserName:   owner.Name,
			UserEmail:  owner.Email,
			Status:     status,
			StartDate:  start,
			Params:     mustJSON(map[string]any{"year_initial": 2001, "year_final": 2015 + i%8}),
		}
		switch status {
		case "FINISHED", "FAILED":
			end := start.Add(time.Duration(300+i*53) * time.Second)
			ex.EndDate = &end
			ex.Duration = end.Sub(start).Seconds()
			ex.Progress = 100
			ex.Results = mustJSON(map[string]any{"type": "CloudResults", "urls": []string{}})
		case "RUNNING":
			ex.Progress = (i * 7) % 100
		}
		executions = append(executions, ex)
		logs = append(logs, executionLogs(ex)...)
	}
	for _, sc := range scripts {
		logs = append(logs,
			models.Log{Source: models.LogScript, ParentID: sc.ID, Level: "INFO", Text: "Build started", RegisterDate: sc.CreatedAt},
			models.Log{Source: models.LogScript, ParentID: sc.ID, Level: buildLevel(sc.Status), Text: "Build " + strings.ToLower(sc.Status), RegisterDate: sc.CreatedAt.Add(2 * time.Minute)},
		)
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&users).Error; err != nil {
			return fmt.Errorf("seed users: %w", err)
		}
		if err := tx.Create(&scripts).Error; err != nil {
			return fmt.Errorf("seed scripts: %w", err)
		}
		if err := tx.CreateInBatches(&executions, 50).Error; err != nil {
			return fmt.Errorf("seed executions: %w", err)
		}
		if err := tx.CreateInBatches(&logs, 100).Error; err != nil {
			return fmt.Errorf("seed logs: %w", err)
		}
		return nil
	})
}

func executionLogs(ex models.Execution) []models.Log {
	logs := []models.Log{
		{Source: models.LogExecution, ParentID: ex.ID, Level: "INFO", Text: "Execution queued", RegisterDate: ex.StartDate},
		{Source: models.LogExecution, ParentID: ex.ID, Level: "DEBUG", Text: "Parameters validated", RegisterDate: ex.StartDate.Add(time.Second)},
	}
	if ex.Status == "PENDING" {
		return logs
	}
	logs = append(logs,
		models.Log{Source: models.LogDocker, ParentID: ex.ID, Text: "Pulling image " + ex.ScriptName, RegisterDate: ex.StartDate.Add(2 * time.Second)},
		models.Log{Source: models.LogDocker, ParentID: ex.ID, Text: "Container started", RegisterDate: ex.StartDate.Add(5 * time.Second)},
	)
	switch ex.Status {
	case "FINISHED":
		logs = append(logs, models.Log{Source: models.LogExecution, ParentID: ex.ID, Level: "INFO", Text: "Execution finished", RegisterDate: *ex.EndDate})
	case "FAILED":
		logs = append(logs, models.Log{Source: models.LogExecution, ParentID: ex.ID, Level: "ERROR", Text: "Execution failed", RegisterDate: *ex.EndDate})
	}
	return logs
}

func buildLevel(status string) string {
	if status == "FAIL" {
		return "ERROR"
	}
	return "INFO"
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
