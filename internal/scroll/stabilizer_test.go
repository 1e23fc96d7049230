package scroll

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct {
	heights      []int
	measurements int
	hasContainer bool
	intoView     int
	nudges       []int
	heightErr    error
}

func (f *fakeRenderer) Find(_ context.Context, _ string) (bool, error) {
	return f.hasContainer, nil
}

func (f *fakeRenderer) ScrollIntoView(_ context.Context, _ string) error {
	f.intoView++
	return nil
}

func (f *fakeRenderer) ScrollBy(_ context.Context, _, dy int) error {
	f.nudges = append(f.nudges, dy)
	return nil
}

// Height returns the configured heights in order, repeating the last one.
func (f *fakeRenderer) Height(_ context.Context) (int, error) {
	if f.heightErr != nil {
		return 0, f.heightErr
	}
	i := f.measurements
	if i >= len(f.heights) {
		i = len(f.heights) - 1
	}
	f.measurements++
	return f.heights[i], nil
}

func TestStabilizeStopsAfterThreeStalls(t *testing.T) {
	r := &fakeRenderer{heights: []int{1000, 2000, 3000}, hasContainer: true}
	s := NewStabilizer(nil)

	iterations, err := s.Stabilize(context.Background(), r, 50, 0)
	require.NoError(t, err)

	// two growing measurements, then three unchanged ones
	assert.Equal(t, 5, iterations)
	assert.Less(t, iterations, 50)
}

func TestStabilizeConstantHeightTerminates(t *testing.T) {
	r := &fakeRenderer{heights: []int{800}, hasContainer: true}

	iterations, err := NewStabilizer(nil).Stabilize(context.Background(), r, 200, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, iterations)
}

func TestStabilizeRespectsIterationCap(t *testing.T) {
	heights := make([]int, 100)
	for i := range heights {
		heights[i] = (i + 1) * 100
	}
	r := &fakeRenderer{heights: heights, hasContainer: true}

	iterations, err := NewStabilizer(nil).Stabilize(context.Background(), r, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, iterations)
	assert.Equal(t, 10, r.intoView)
	assert.Empty(t, r.nudges)
}

func TestStabilizeNudgesWhenStalled(t *testing.T) {
	r := &fakeRenderer{heights: []int{500}, hasContainer: true}

	_, err := NewStabilizer(nil).Stabilize(context.Background(), r, 10, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, r.intoView)
	assert.Equal(t, []int{DefaultForwardNudge, -DefaultBackwardNudge}, r.nudges)
}

func TestStabilizeFallsBackWithoutContainer(t *testing.T) {
	r := &fakeRenderer{heights: []int{500}, hasContainer: false}

	iterations, err := NewStabilizer(nil).Stabilize(context.Background(), r, 10, 0)
	require.NoError(t, err)

	assert.Equal(t, 3, iterations)
	assert.Zero(t, r.intoView)
	assert.Equal(t, []int{DefaultForwardNudge, DefaultForwardNudge, -DefaultBackwardNudge}, r.nudges)
}

func TestStabilizeHeightError(t *testing.T) {
	r := &fakeRenderer{heights: []int{1}, heightErr: errors.New("page crashed")}

	_, err := NewStabilizer(nil).Stabilize(context.Background(), r, 10, 0)
	assert.Error(t, err)
}

func TestStabilizeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &fakeRenderer{heights: []int{1, 2, 3}}

	iterations, err := NewStabilizer(nil).Stabilize(ctx, r, 10, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, iterations)
}
