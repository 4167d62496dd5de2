package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriendshipRepository_LockUsers(t *testing.T) {
	gormDB, mock := newMockDB(t)
	repo := NewFriendshipRepository(gormDB)
	a, b := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT .*id.* FROM `users` WHERE id IN \\(\\?,\\?\\) ORDER BY id FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(a.String()))

	found, err := repo.LockUsers(context.Background(), a, b)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a}, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFriendshipRepository_DeleteRequest(t *testing.T) {
	gormDB, mock := newMockDB(t)
	repo := NewFriendshipRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `friend_requests` WHERE recipient_id = \\? AND sender_id = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	deleted, err := repo.DeleteRequest(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFriendshipRepository_AddFriendship_WritesBothDirections(t *testing.T) {
	gormDB, mock := newMockDB(t)
	repo := NewFriendshipRepository(gormDB)
	a, b := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `friendships`").
		WithArgs(a.String(), b.String(), sqlmock.AnyArg(), b.String(), a.String(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, repo.AddFriendship(context.Background(), a, b))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFriendshipRepository_WithTransaction_RollsBackOnError(t *testing.T) {
	gormDB, mock := newMockDB(t)
	repo := NewFriendshipRepository(gormDB)
	boom := errors.New("second write failed")

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM `friend_requests`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `friendships`").WillReturnError(boom)
	mock.ExpectRollback()

	err := repo.WithTransaction(context.Background(), func(ctx context.Context, tx FriendshipRepository) error {
		if _, err := tx.DeleteRequest(ctx, uuid.New(), uuid.New()); err != nil {
			return err
		}
		return tx.AddFriendship(ctx, uuid.New(), uuid.New())
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFriendshipRepository_ListRequestSenderIDs(t *testing.T) {
	gormDB, mock := newMockDB(t)
	repo := NewFriendshipRepository(gormDB)
	first, second := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT .*sender_id.* FROM `friend_requests` WHERE recipient_id = \\? ORDER BY id").
		WillReturnRows(sqlmock.NewRows([]string{"sender_id"}).AddRow(first.String()).AddRow(second.String()))

	ids, err := repo.ListRequestSenderIDs(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first, second}, ids)
}
