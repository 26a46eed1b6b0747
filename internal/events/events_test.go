package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBus_PreservesOrder(t *testing.T) {
	bus := NewBus(4, zap.NewNop())

	bus.Publish(ChangeEvent{Kind: KindWeatherConditionChanged, SubjectID: "Tokyo"})
	bus.Publish(ChangeEvent{Kind: KindWeatherTempJump, SubjectID: "Tokyo"})
	bus.Close()

	var got []Kind
	for e := range bus.Events() {
		got = append(got, e.Kind)
	}
	assert.Equal(t, []Kind{KindWeatherConditionChanged, KindWeatherTempJump}, got)
}

func TestBus_DropsWhenFull(t *testing.T) {
	bus := NewBus(1, zap.NewNop())

	bus.Publish(ChangeEvent{SubjectID: "a"})
	bus.Publish(ChangeEvent{SubjectID: "b"})

	assert.Equal(t, int64(1), bus.Dropped())
	e := <-bus.Events()
	require.Equal(t, "a", e.SubjectID)
}

func TestBus_PublishAfterCloseIsNoop(t *testing.T) {
	bus := NewBus(1, nil)
	bus.Close()
	bus.Close()

	assert.NotPanics(t, func() {
		bus.Publish(ChangeEvent{SubjectID: "late"})
	})
	_, ok := <-bus.Events()
	assert.False(t, ok)
}
