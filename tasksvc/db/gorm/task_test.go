package gorm

import (
	"context"
	"testing"

	"github.com/ichigozero/todokit/tasksvc"
	"github.com/ichigozero/todokit/tasksvc/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	stdgorm "gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *stdgorm.DB {
	t.Helper()

	db, err := stdgorm.Open(sqlite.Open(":memory:"), &stdgorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Every connection to :memory: is a separate database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

func TestTaskRepository(t *testing.T) {
	dbtest.Run(t, func(t *testing.T) tasksvc.TaskRepository {
		return NewTaskRepository(openTestDB(t))
	})
}

func TestCustomIDIsUnique(t *testing.T) {
	db := openTestDB(t)
	repo := NewTaskRepository(db)

	created, err := repo.Create(context.Background(), "first")
	require.NoError(t, err)

	err = db.Create(&task{CustomID: created.CustomID, Title: "duplicate"}).Error
	assert.ErrorIs(t, err, stdgorm.ErrDuplicatedKey)
}

// claimNextCustomID makes the first collisions inserts fail by writing a row
// with the same customId inside the inserting transaction, as a writer in
// another process would. It returns the number of insert attempts seen.
func claimNextCustomID(t *testing.T, db *stdgorm.DB, collisions int) *int {
	t.Helper()

	var attempts int
	err := db.Callback().Create().Before("gorm:create").Register("test:claim_custom_id", func(tx *stdgorm.DB) {
		rec, ok := tx.Statement.Dest.(*task)
		if !ok {
			return
		}
		attempts++
		if attempts > collisions {
			return
		}
		err := tx.Session(&stdgorm.Session{NewDB: true}).
			Exec("INSERT INTO tasks (custom_id, title, completed) VALUES (?, ?, ?)", rec.CustomID, "claimed", false).
			Error
		if err != nil {
			tx.AddError(err)
		}
	})
	require.NoError(t, err)
	return &attempts
}

func TestCreateRetriesOnDuplicateCustomID(t *testing.T) {
	db := openTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, "first")
	require.NoError(t, err)

	attempts := claimNextCustomID(t, db, 2)

	created, err := repo.Create(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, 3, *attempts)
	assert.Equal(t, int64(2), created.CustomID)
	assert.Equal(t, "second", created.Title)

	found, err := repo.Find(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "second", found.Title)
}

func TestCreateGivesUpAfterRepeatedConflicts(t *testing.T) {
	db := openTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	attempts := claimNextCustomID(t, db, maxCreateAttempts)

	_, err := repo.Create(ctx, "never stored")
	assert.ErrorIs(t, err, tasksvc.ErrCustomIDConflict)
	assert.Equal(t, maxCreateAttempts, *attempts)

	tasks, err := repo.FindAll(ctx, tasksvc.Filter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%`, escapeLike("50%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\tmp`, escapeLike(`c:\tmp`))
	assert.Equal(t, "plain", escapeLike("plain"))
}
