package implementation

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"legal-review-client/internal/model"
	"legal-review-client/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestDecisionAuditRepository(t *testing.T) {
	if err := godotenv.Load("../../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.DecisionAudit{}))

	repo := NewDecisionAuditRepository(db)
	ctx := context.Background()
	sessionID := "it-" + uuid.NewString()
	t.Cleanup(func() {
		db.Where("session_id = ?", sessionID).Delete(&model.DecisionAudit{})
	})

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &model.DecisionAudit{
			ID:          uuid.New(),
			SessionID:   sessionID,
			ActionCount: 1,
			Approved:    1,
			Tools:       []string{"write_file"},
			Decisions:   datatypes.JSON(`[{"decision":"approve"}]`),
			SubmittedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	audits, err := repo.ListBySession(ctx, sessionID, 2)
	require.NoError(t, err)
	require.Len(t, audits, 2)
	assert.True(t, audits[0].SubmittedAt.After(audits[1].SubmittedAt))
	assert.Equal(t, []string{"write_file"}, []string(audits[0].Tools))
}
