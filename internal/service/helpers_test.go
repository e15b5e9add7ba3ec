package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/gema-enrollment-api/internal/dto"
	"github.com/noah-isme/gema-enrollment-api/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// setupTestDB opens a private in-memory database per test.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.Course{},
		&models.PrerequisiteTerm{},
		&models.CompletedCourse{},
		&models.Enrollment{},
		&models.WaitlistEntry{},
		&models.CourseOffering{},
		&models.CapacitySnapshot{},
		&models.Notification{},
		&models.ActivityLog{},
	))
	return db
}

func seedStudent(t *testing.T, db *gorm.DB, id uint, status models.StudentStatus) models.Student {
	t.Helper()
	student := models.Student{
		ID:            id,
		StudentNumber: fmt.Sprintf("S%04d", id),
		Name:          fmt.Sprintf("Student %d", id),
		Email:         fmt.Sprintf("student%d@example.com", id),
		Status:        status,
	}
	require.NoError(t, db.Create(&student).Error)
	return student
}

func seedCourse(t *testing.T, db *gorm.DB, code string, capacity int, prerequisites ...models.PrerequisiteTerm) models.Course {
	t.Helper()
	course := models.Course{
		Code:          code,
		Title:         code + " title",
		CreditHours:   3,
		MaxEnrollment: capacity,
		Prerequisites: prerequisites,
	}
	require.NoError(t, db.Create(&course).Error)
	return course
}

type recordingActivity struct {
	mu      sync.Mutex
	entries []ActivityEntry
}

func (r *recordingActivity) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return dto.ActivityResponse{Action: entry.Action}, nil
}

func (r *recordingActivity) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []PromotionEvent
	err    error
}

func (r *recordingNotifier) NotifyPromotion(ctx context.Context, event PromotionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}
