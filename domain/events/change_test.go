package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabgraph-backend/domain/model"
)

func TestValidateRequiresElementID(t *testing.T) {
	change := ChangeEvent{Kind: ChangeProperty}
	assert.Error(t, change.Validate())
}

func TestValidateConnectionRequiresEndpoints(t *testing.T) {
	change := ChangeEvent{Kind: ChangeConnection, ElementID: "flow_1"}
	assert.Error(t, change.Validate())

	change.SourceID = "a"
	change.TargetID = "b"
	assert.NoError(t, change.Validate())
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	change := ChangeEvent{Kind: "resize", ElementID: "task_1"}
	assert.Error(t, change.Validate())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	x, y := 10, 20
	batch := []ChangeEvent{
		{Kind: ChangeProperty, ElementID: "task_1", Properties: map[string]interface{}{"name": "Review"}},
		{Kind: ChangePosition, ElementID: "task_1", X: &x, Y: &y},
	}

	data, err := Encode(batch)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, ChangeProperty, decoded[0].Kind)
	assert.Equal(t, "Review", decoded[0].Properties["name"])
	assert.Equal(t, 10, *decoded[1].X)
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	_, err := Decode([]byte(`{"not":"an array"}`))
	assert.Error(t, err)
}

func TestExtractPropertiesOnlyCarriesTrackedKeys(t *testing.T) {
	el := model.NewShape("task_1", "userTask")
	el.Business.Name = "Review order"
	el.Business.Assignee = "kate"
	el.Business.SetPath("custom.internal", "hidden")

	props := ExtractProperties(el.Business)
	assert.Equal(t, "Review order", props["name"])
	assert.Equal(t, "kate", props["assignee"])
	assert.NotContains(t, props, "custom")
}

func TestExtractElementDataAppliesGeometryDefaults(t *testing.T) {
	el := model.NewShape("task_1", "task")
	el.Width, el.Height = 0, 0

	data := ExtractElementData(el)
	assert.Equal(t, model.DefaultShapeWidth, data.Width)
	assert.Equal(t, model.DefaultShapeHeight, data.Height)
}

func TestFromElementConnectionCarriesEndpoints(t *testing.T) {
	conn := model.NewConnection("flow_1", "sequenceFlow", "a", "b")

	change := FromElement(ChangeConnection, conn, "u1")
	assert.Equal(t, "a", change.SourceID)
	assert.Equal(t, "b", change.TargetID)
	assert.Equal(t, "u1", change.UserID)
	require.NotNil(t, change.ElementData)
	assert.Equal(t, "flow_1", change.ElementData.ID)
}

func TestFromElementPositionCarriesCoordinates(t *testing.T) {
	el := model.NewShape("task_1", "task")
	el.X, el.Y = 150, 75

	change := FromElement(ChangePosition, el, "u1")
	require.NotNil(t, change.X)
	require.NotNil(t, change.Y)
	assert.Equal(t, 150, *change.X)
	assert.Equal(t, 75, *change.Y)
}
