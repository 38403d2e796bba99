package service

import (
	"context"
	"testing"

	"formintake/internal/model"
	"formintake/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGetAuditLogs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tpl := env.createTemplate(t)
	env.notifier.On("Notify", mock.Anything, mock.Anything)

	res, err := env.submissionSvc.Submit(ctx, tpl.ID, "alice", SubmitRequest{Answers: completeAnswers()})
	require.NoError(t, err)
	require.NoError(t, writeAudit(ctx, env.audit, "", model.ActionAssignForReview, model.EntityFormSubmission, res.ID, "", map[string]interface{}{"reviewer": "auto"}))

	svc := NewAuditService(env.audit)

	logs, total, err := svc.GetAuditLogs(ctx, AuditFilter{EntityID: res.ID}, pagination.Normalize(1, 20))
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, logs, 3)

	submits, total, err := svc.GetAuditLogs(ctx, AuditFilter{Action: model.ActionSubmitForm}, pagination.Normalize(1, 20))
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "alice", submits[0].UserID)
	assert.JSONEq(t, `{"status":"Submitted"}`, string(submits[0].Details))

	system, _, err := svc.GetAuditLogs(ctx, AuditFilter{Action: model.ActionAssignForReview}, pagination.Normalize(1, 20))
	require.NoError(t, err)
	require.Len(t, system, 1)
	assert.Equal(t, "System", system[0].UserID)
	assert.JSONEq(t, `{"reviewer":"auto"}`, string(system[0].Details))
}
