package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/example/marketplace-messaging/domain/user"
	"github.com/example/marketplace-messaging/modules/store"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any)         {}
func (m *mockLogger) Info(_ string, _ ...any)          {}
func (m *mockLogger) Warn(_ string, _ ...any)          {}
func (m *mockLogger) Error(_ string, _ ...any)         {}
func (m *mockLogger) With(_ ...any) types.Logger       { return m }
func (m *mockLogger) WithError(_ error) types.Logger   { return m }
func (m *mockLogger) WithModule(_ string) types.Logger { return m }

// fakeUsers is an in-memory UserFinder.
type fakeUsers struct {
	users []user.User
	err   error
}

func (f *fakeUsers) FindUserByID(_ context.Context, id int64) (*user.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.users {
		if f.users[i].ID == id {
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (f *fakeUsers) FindUserByEmail(_ context.Context, email string) (*user.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.users {
		if f.users[i].Email == email {
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: []user.User{
		{ID: 1, Username: "alice", Email: "alice@example.com", Role: user.RoleUser},
		{ID: 2, Username: "agency", Email: "agency@example.com", Role: user.RoleAgency},
	}}
}

func TestTokenVerifier_Verify(t *testing.T) {
	manager := newTestManager(t, testJWTConfig())
	verifier := NewTokenVerifier(manager, newFakeUsers())
	ctx := context.Background()

	byID, err := manager.GenerateAccessToken(2, "ignored@example.com")
	require.NoError(t, err)
	bySubject, err := manager.GenerateSubjectToken("alice@example.com")
	require.NoError(t, err)
	unknownID, err := manager.GenerateAccessToken(99, "ghost@example.com")
	require.NoError(t, err)
	unknownSubject, err := manager.GenerateSubjectToken("ghost@example.com")
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantID  int64
		wantErr error
	}{
		{name: "user_id claim", token: byID, wantID: 2},
		{name: "email subject", token: bySubject, wantID: 1},
		{name: "unknown user id", token: unknownID, wantErr: ErrUnknownUser},
		{name: "unknown subject", token: unknownSubject, wantErr: ErrUnknownUser},
		{name: "missing token", token: "", wantErr: ErrMissingToken},
		{name: "invalid token", token: "abc.def.ghi", wantErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := verifier.Verify(ctx, tt.token)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrUnauthenticated)
				assert.Nil(t, u)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, u.ID)
		})
	}
}

func TestTokenVerifier_StoreFailure(t *testing.T) {
	manager := newTestManager(t, testJWTConfig())
	dbErr := errors.New("database is locked")
	verifier := NewTokenVerifier(manager, &fakeUsers{err: dbErr})

	token, err := manager.GenerateAccessToken(1, "alice@example.com")
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), token)
	require.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}

func TestModule_HandleVerifyToken(t *testing.T) {
	cfg := testJWTConfig()
	m := NewModule(cfg, newFakeUsers(), &mockLogger{})
	ctx := context.Background()

	assert.Equal(t, "auth", m.Name())
	assert.False(t, m.Health(ctx).Healthy)
	require.NoError(t, m.Start(ctx))
	assert.True(t, m.Health(ctx).Healthy)

	manager := newTestManager(t, cfg)
	token, err := manager.GenerateAccessToken(1, "alice@example.com")
	require.NoError(t, err)

	resp, err := m.handleVerifyToken(ctx, VerifyTokenRequest{Token: token}, nil)
	require.NoError(t, err)
	assert.True(t, resp.Valid)
	assert.Equal(t, int64(1), resp.UserID)
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, "user", resp.Role)

	resp, err = m.handleVerifyToken(ctx, VerifyTokenRequest{Token: "bogus"}, nil)
	require.NoError(t, err)
	assert.False(t, resp.Valid)
	assert.Equal(t, ReasonInvalidToken, resp.Reason)
	assert.ErrorIs(t, errorForReason(resp.Reason), ErrInvalidToken)

	resp, err = m.handleVerifyToken(ctx, VerifyTokenRequest{Token: ""}, nil)
	require.NoError(t, err)
	assert.Equal(t, ReasonMissingToken, resp.Reason)

	require.NoError(t, m.Stop(ctx))
}

func TestModule_StartRequiresUsers(t *testing.T) {
	m := NewModule(testJWTConfig(), nil, &mockLogger{})
	require.Error(t, m.Start(context.Background()))
}

func TestReasonRoundTrip(t *testing.T) {
	for _, err := range []error{ErrMissingToken, ErrInvalidToken, ErrExpiredToken, ErrUnknownUser} {
		assert.ErrorIs(t, errorForReason(reasonFor(err)), err)
	}
}
