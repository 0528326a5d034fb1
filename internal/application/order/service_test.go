package order

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/posbridge/backend/internal/application/realtime"
	"github.com/posbridge/backend/internal/domain/order"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Create(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *mockRepository) FindByToken(ctx context.Context, token string) (*order.Order, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *mockRepository) FindByReference(ctx context.Context, ref string) (*order.Order, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *mockRepository) ExistsByToken(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepository) UpdateStatus(ctx context.Context, token string, status string) error {
	args := m.Called(ctx, token, status)
	return args.Error(0)
}

func (m *mockRepository) UpdateParameters(ctx context.Context, id uuid.UUID, params map[string]string) error {
	args := m.Called(ctx, id, params)
	return args.Error(0)
}

// recordingBroadcaster captures broadcast events for assertions.
type recordingBroadcaster struct {
	events []realtime.Event
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, event realtime.Event) {
	b.events = append(b.events, event)
}

func TestIngestHappyPath(t *testing.T) {
	repo := new(mockRepository)
	hub := &recordingBroadcaster{}
	svc := NewService(repo, hub, zap.NewNop())

	repo.On("ExistsByToken", mock.Anything, "order-token-1").Return(false, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*order.Order")).Return(nil)

	result, err := svc.Ingest(context.Background(), "rest-789", basePayload(t))
	require.NoError(t, err)

	assert.Equal(t, "order-token-1", result.Token)
	assert.Equal(t, "XK4D", result.Code)
	assert.NotEqual(t, uuid.Nil, result.ID)

	require.Len(t, hub.events, 1)
	assert.Equal(t, realtime.EventNewOrder, hub.events[0].Type)

	repo.AssertExpectations(t)
}

func TestIngestRejectsInvalidPayload(t *testing.T) {
	repo := new(mockRepository)
	hub := &recordingBroadcaster{}
	svc := NewService(repo, hub, zap.NewNop())

	raw := basePayload(t)
	delete(raw, "token")
	delete(raw, "expeditionType")

	_, err := svc.Ingest(context.Background(), "rest-789", raw)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.NotEmpty(t, validationErr.Errors)

	// Nothing touched the repository or the terminals.
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Empty(t, hub.events)
}

func TestIngestRejectsDuplicateToken(t *testing.T) {
	repo := new(mockRepository)
	hub := &recordingBroadcaster{}
	svc := NewService(repo, hub, zap.NewNop())

	repo.On("ExistsByToken", mock.Anything, "order-token-1").Return(true, nil)

	_, err := svc.Ingest(context.Background(), "rest-789", basePayload(t))
	assert.ErrorIs(t, err, order.ErrDuplicateOrder)

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Empty(t, hub.events)
}

func TestIngestSurfacesRepositoryDuplicate(t *testing.T) {
	repo := new(mockRepository)
	hub := &recordingBroadcaster{}
	svc := NewService(repo, hub, zap.NewNop())

	// Race: the pre-check passes but the unique index catches the insert.
	repo.On("ExistsByToken", mock.Anything, "order-token-1").Return(false, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(order.ErrDuplicateOrder)

	_, err := svc.Ingest(context.Background(), "rest-789", basePayload(t))
	assert.ErrorIs(t, err, order.ErrDuplicateOrder)
	assert.Empty(t, hub.events)
}
