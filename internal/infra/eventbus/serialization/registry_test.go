package serialization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/logsift/internal/domain/analysis"
	"github.com/ahrav/logsift/internal/domain/reporting"
	serializationerrors "github.com/ahrav/logsift/internal/infra/eventbus/serialization/errors"
)

func TestEnvelope_RunFinished(t *testing.T) {
	evt := reporting.NewRunFinishedEvent(42, 7)

	data, err := SerializeEventEnvelope(reporting.EventTypeRunFinished, &evt)
	require.NoError(t, err)

	typ, payload, err := UnmarshalUniversalEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, reporting.EventTypeRunFinished, typ)

	decoded, err := DeserializePayload(typ, payload)
	require.NoError(t, err)
	got, ok := decoded.(reporting.RunFinishedEvent)
	require.True(t, ok)
	assert.Equal(t, int64(42), got.RunID)
	assert.Equal(t, int64(7), got.ProjectID)
	assert.True(t, evt.FinishedAt.Equal(got.FinishedAt))
}

func TestEnvelope_ProducerFormat(t *testing.T) {
	raw := []byte(`{"type":"RunFinished","payload":{"run_id":5,"project_id":1,"finished_at":"2024-03-01T12:00:00Z"}}`)

	typ, payload, err := UnmarshalUniversalEnvelope(raw)
	require.NoError(t, err)

	decoded, err := DeserializePayload(typ, payload)
	require.NoError(t, err)
	assert.Equal(t, int64(5), decoded.(reporting.RunFinishedEvent).RunID)
}

func TestSerializePayload_Errors(t *testing.T) {
	_, err := SerializePayload("Unknown", struct{}{})
	var unknown serializationerrors.ErrUnknownEventType
	require.ErrorAs(t, err, &unknown)

	_, err = SerializePayload(analysis.EventTypeTicketLinked, reporting.RunFinishedEvent{})
	var wrong serializationerrors.ErrPayloadType
	require.ErrorAs(t, err, &wrong)

	var nilEvt *analysis.IssueReclassifiedEvent
	_, err = SerializePayload(analysis.EventTypeIssueReclassified, nilEvt)
	var nilErr serializationerrors.ErrNilEvent
	require.ErrorAs(t, err, &nilErr)

	_, _, err = UnmarshalUniversalEnvelope([]byte(`{"payload":{}}`))
	require.Error(t, err)
}
