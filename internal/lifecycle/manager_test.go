package lifecycle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fieldops-backend/internal/model"
	"fieldops-backend/internal/notification"
	"fieldops-backend/internal/store"
)

// recordingDispatcher captures alert jobs instead of sending push messages.
type recordingDispatcher struct {
	jobs []notification.Job
}

func (d *recordingDispatcher) Dispatch(job notification.Job) {
	d.jobs = append(d.jobs, job)
}

func newTestManager(t *testing.T) (*Manager, *recordingDispatcher, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, testDB.AutoMigrate(&model.Operation{}, &model.OperationHistory{}))

	dispatcher := &recordingDispatcher{}
	s := store.NewGormStore(testDB, nil)
	return NewManager(s, dispatcher, 15), dispatcher, testDB
}

func rmaData() map[string]any {
	return map[string]any{"serial": "FHTT1234", "modelo": "HG6143D"}
}

func TestCreateOperation(t *testing.T) {
	mgr, dispatcher, _ := newTestManager(t)
	ctx := context.Background()

	op, err := mgr.Create(ctx, model.TypeRMA, rmaData(), "Tech1", "tech1")
	require.NoError(t, err)

	assert.Equal(t, "pending", op.Status)
	assert.Nil(t, op.AssignedOperator)
	assert.NotEmpty(t, op.ID)

	active := mgr.Active()
	require.Len(t, active, 1)
	assert.Equal(t, op.ID, active[0].ID)
	assert.Equal(t, "Tech1", active[0].Technician)

	// New pending operation is queued and operators are alerted.
	assert.Equal(t, 1, mgr.QueuePosition(op.ID))
	require.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, notification.AudienceOperators, dispatcher.jobs[0].Audience)
}

func TestCreateRejectsInvalidForm(t *testing.T) {
	mgr, dispatcher, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Create(ctx, model.TypeRMA, map[string]any{"serial": "FHTT1234"}, "Tech1", "tech1")
	assert.Error(t, err)

	_, err = mgr.Create(ctx, model.TypeRMA, map[string]any{"serial": "nope", "modelo": "HG6143D"}, "Tech1", "tech1")
	assert.Error(t, err)

	// Nothing was written or mirrored.
	assert.Empty(t, mgr.Active())
	assert.Empty(t, dispatcher.jobs)
}

func TestCreateAlertsOnceWhenEchoArrivesFirst(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, testDB.AutoMigrate(&model.Operation{}, &model.OperationHistory{}))

	dispatcher := &recordingDispatcher{}
	// The sink reduces every event before the write call returns, so the
	// insert echo lands ahead of Create's own mirror apply.
	var mgr *Manager
	s := store.NewGormStore(testDB, store.SinkFunc(func(ev store.ChangeEvent) {
		mgr.apply(ev)
	}))
	mgr = NewManager(s, dispatcher, 15)

	op, err := mgr.Create(context.Background(), model.TypeRMA, rmaData(), "Tech1", "tech1")
	require.NoError(t, err)

	// One new operation, one operator alert, one mirrored row.
	require.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, notification.AudienceOperators, dispatcher.jobs[0].Audience)
	assert.Equal(t, op.ID, dispatcher.jobs[0].OperationID)
	assert.Len(t, mgr.Active(), 1)
	assert.Equal(t, 1, mgr.QueuePosition(op.ID))
}

func TestAssignOperation(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	op, err := mgr.Create(ctx, model.TypeRMA, rmaData(), "Tech1", "tech1")
	require.NoError(t, err)

	assigned, err := mgr.Assign(ctx, op.ID, "op1", "Op One")
	require.NoError(t, err)

	assert.Equal(t, "in_progress", assigned.Status)
	require.NotNil(t, assigned.AssignedOperator)
	assert.Equal(t, "Op One", *assigned.AssignedOperator)
	require.NotNil(t, assigned.AssignedAt)

	// Assignment leaves the active set but empties the queue view.
	assert.Len(t, mgr.Active(), 1)
	assert.Equal(t, 0, mgr.QueuePosition(op.ID))
	assert.Empty(t, mgr.Queue())
}

func TestAssignSilentlyReassigns(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	op, err := mgr.Create(ctx, model.TypeRMA, rmaData(), "Tech1", "tech1")
	require.NoError(t, err)

	_, err = mgr.Assign(ctx, op.ID, "op1", "Op One")
	require.NoError(t, err)

	reassigned, err := mgr.Assign(ctx, op.ID, "op2", "Op Two")
	require.NoError(t, err)
	assert.Equal(t, "Op Two", *reassigned.AssignedOperator)
}

func TestCompleteOperation(t *testing.T) {
	mgr, _, testDB := newTestManager(t)
	ctx := context.Background()

	op, err := mgr.Create(ctx, model.TypeRMA, rmaData(), "Tech1", "tech1")
	require.NoError(t, err)
	_, err = mgr.Assign(ctx, op.ID, "op1", "Op One")
	require.NoError(t, err)

	archived, err := mgr.Complete(ctx, op.ID, "Op One")
	require.NoError(t, err)

	assert.Equal(t, op.ID, archived.OperationID)
	assert.Equal(t, "completed", archived.Status)
	assert.False(t, archived.CompletedAt.Before(archived.CreatedAt))

	// Gone from the active set, present exactly once in history.
	assert.Empty(t, mgr.Active())
	assert.Equal(t, 0, mgr.QueuePosition(op.ID))

	var activeCount, historyCount int64
	testDB.Model(&model.Operation{}).Where("id = ?", op.ID).Count(&activeCount)
	testDB.Model(&model.OperationHistory{}).Where("operation_id = ?", op.ID).Count(&historyCount)
	assert.Equal(t, int64(0), activeCount)
	assert.Equal(t, int64(1), historyCount)

	var rec model.OperationHistory
	require.NoError(t, testDB.First(&rec, "operation_id = ?", op.ID).Error)
	assert.Equal(t, model.TypeRMA, rec.Type)
	assert.Equal(t, "Tech1", rec.Technician)
	assert.Equal(t, "HG6143D", rec.Data["modelo"])

	// Further updates fail with not-found since the row left the active set.
	_, err = mgr.SendFeedback(ctx, op.ID, "too late")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCompletePendingIsRejected(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	op, err := mgr.Create(ctx, model.TypeRMA, rmaData(), "Tech1", "tech1")
	require.NoError(t, err)

	_, err = mgr.Complete(ctx, op.ID, "Op One")
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Len(t, mgr.Active(), 1)
}

func TestCancelPendingOperation(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	op, err := mgr.Create(ctx, model.TypeRMA, rmaData(), "Tech1", "tech1")
	require.NoError(t, err)

	archived, err := mgr.Cancel(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", archived.Status)
	assert.Empty(t, mgr.Active())
	assert.Empty(t, mgr.Queue())
}

func TestUpdateStatus(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	op, err := mgr.Create(ctx, model.TypeRMA, rmaData(), "Tech1", "tech1")
	require.NoError(t, err)

	// Legacy alias moves the operation out of the queue.
	updated, err := mgr.UpdateStatus(ctx, op.ID, "verificando")
	require.NoError(t, err)
	assert.Equal(t, "verificando", updated.Status)
	assert.Equal(t, 0, mgr.QueuePosition(op.ID))

	// Unknown strings and illegal transitions are rejected.
	_, err = mgr.UpdateStatus(ctx, op.ID, "done")
	assert.ErrorIs(t, err, ErrUnknownStatus)

	_, err = mgr.UpdateStatus(ctx, op.ID, "pending")
	assert.ErrorIs(t, err, ErrIllegalTransition)

	// Terminal states only via Complete/Cancel.
	_, err = mgr.UpdateStatus(ctx, op.ID, "completed")
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestFeedbackAndResponse(t *testing.T) {
	mgr, dispatcher, _ := newTestManager(t)
	ctx := context.Background()

	op, err := mgr.Create(ctx, model.TypeRMA, rmaData(), "Tech1", "tech1")
	require.NoError(t, err)
	dispatcher.jobs = nil

	// Whitespace-only text is a no-op: no write, no alert.
	_, err = mgr.SendFeedback(ctx, op.ID, "   \t ")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Empty(t, dispatcher.jobs)
	fresh := mgr.Active()[0]
	assert.Nil(t, fresh.Feedback)

	updated, err := mgr.SendFeedback(ctx, op.ID, "troque o equipamento")
	require.NoError(t, err)
	require.NotNil(t, updated.Feedback)
	assert.Equal(t, "troque o equipamento", *updated.Feedback)
	require.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, notification.AudienceTechnician, dispatcher.jobs[0].Audience)
	assert.Equal(t, "tech1", dispatcher.jobs[0].UserID)

	// Feedback is overwritten, not appended.
	updated, err = mgr.SendFeedback(ctx, op.ID, "cancelado, aguarde")
	require.NoError(t, err)
	assert.Equal(t, "cancelado, aguarde", *updated.Feedback)

	updated, err = mgr.SendTechnicianResponse(ctx, op.ID, "ok, aguardando")
	require.NoError(t, err)
	require.NotNil(t, updated.TechnicianResponse)
	assert.Equal(t, "ok, aguardando", *updated.TechnicianResponse)
	assert.Equal(t, notification.AudienceOperators, dispatcher.jobs[len(dispatcher.jobs)-1].Audience)
}

func TestQueuePositionAndWaitTime(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	first, err := mgr.Create(ctx, model.TypeRMA, rmaData(), "Tech1", "tech1")
	require.NoError(t, err)
	second, err := mgr.Create(ctx, model.TypeRMA, rmaData(), "Tech2", "tech2")
	require.NoError(t, err)

	// Newest first: the later submission heads the queue.
	assert.Equal(t, 1, mgr.QueuePosition(second.ID))
	assert.Equal(t, 2, mgr.QueuePosition(first.ID))
	assert.Equal(t, 15, mgr.EstimatedWaitMinutes(second.ID))
	assert.Equal(t, 30, mgr.EstimatedWaitMinutes(first.ID))

	// Unknown ids are reported as not queued.
	assert.Equal(t, 0, mgr.QueuePosition("missing"))
	assert.Equal(t, 0, mgr.EstimatedWaitMinutes("missing"))
}

func TestQueueContainsOnlyPending(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	pending, err := mgr.Create(ctx, model.TypeRMA, rmaData(), "Tech1", "tech1")
	require.NoError(t, err)
	claimed, err := mgr.Create(ctx, model.TypeRMA, rmaData(), "Tech2", "tech2")
	require.NoError(t, err)
	_, err = mgr.Assign(ctx, claimed.ID, "op1", "Op One")
	require.NoError(t, err)

	queue := mgr.Queue()
	require.Len(t, queue, 1)
	assert.Equal(t, pending.ID, queue[0].ID)
	assert.Len(t, mgr.Active(), 2)
}

func TestUserOperations(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	mine, err := mgr.Create(ctx, model.TypeRMA, rmaData(), "Tech1", "tech1")
	require.NoError(t, err)
	_, err = mgr.Create(ctx, model.TypeRMA, rmaData(), "Tech2", "tech2")
	require.NoError(t, err)

	ops := mgr.UserOperations("tech1")
	require.Len(t, ops, 1)
	assert.Equal(t, mine.ID, ops[0].ID)

	assert.Empty(t, mgr.UserOperations("tech3"))
}

func TestReload(t *testing.T) {
	mgr, _, testDB := newTestManager(t)
	ctx := context.Background()

	op, err := mgr.Create(ctx, model.TypeRMA, rmaData(), "Tech1", "tech1")
	require.NoError(t, err)

	// A second manager over the same database converges on Reload.
	other := NewManager(store.NewGormStore(testDB, nil), nil, 15)
	require.NoError(t, other.Reload(ctx))

	require.Len(t, other.Active(), 1)
	assert.Equal(t, op.ID, other.Active()[0].ID)
	assert.Equal(t, 1, other.QueuePosition(op.ID))
}

func TestOperationTimestamps(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	op, err := mgr.Create(ctx, model.TypeRMA, rmaData(), "Tech1", "tech1")
	require.NoError(t, err)
	assert.True(t, op.CreatedAt.After(before))
}
