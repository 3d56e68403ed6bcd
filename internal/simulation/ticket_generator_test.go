package simulation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-route-service/internal/domain"
)

func TestTicketGeneratorIsSeeded(t *testing.T) {
	cfg := GeneratorConfig{RadiusKm: 2, MaxPackages: 4, UrgentShare: 0.5, Seed: 42}
	center := domain.Coordinates{Lat: 52.52, Lng: 13.405}

	a := NewTicketGenerator(nil, cfg, nil)
	b := NewTicketGenerator(nil, cfg, nil)
	for i := 0; i < 20; i++ {
		ta, tb := a.Generate(center), b.Generate(center)
		assert.Equal(t, ta, tb)

		assert.Equal(t, ta.ID, ta.Stop.ID)
		assert.Equal(t, domain.StopTypeDelivery, ta.Stop.Type)
		assert.GreaterOrEqual(t, ta.Stop.PackageCount, 1)
		assert.LessOrEqual(t, ta.Stop.PackageCount, 4)
		assert.LessOrEqual(t, domain.HaversineMeters(center, ta.Stop.Coordinates), 2000*1.01)
		assert.Contains(t, []Priority{PriorityNormal, PriorityUrgent}, ta.Priority)
	}
}

func TestTicketGeneratorTickObeysFlags(t *testing.T) {
	r := newTestRunner(&gatedPlanner{}, 0)
	g := NewTicketGenerator(r, GeneratorConfig{Seed: 7}, nil)

	_, ok := g.Tick()
	assert.False(t, ok, "generation is off by default")

	r.SetTicketGeneration(true)
	ticket, ok := g.Tick()
	require.True(t, ok)
	require.Len(t, r.State().TicketQueue, 1)
	assert.Equal(t, ticket.ID, r.State().TicketQueue[0].ID)

	r.SetRunning(false)
	_, ok = g.Tick()
	assert.False(t, ok, "paused simulations get no tickets")
	assert.Len(t, r.State().TicketQueue, 1)
}

func TestTicketGeneratorKeepsRunningDuringReoptimization(t *testing.T) {
	planner := &gatedPlanner{gate: make(chan struct{})}
	r := newTestRunner(planner, 2)
	r.SetTicketGeneration(true)
	g := NewTicketGenerator(r, GeneratorConfig{Seed: 3, MaxPackages: 1}, nil)

	for _, id := range []string{"t1", "t2"} {
		_, err := r.AddTicket(QueuedTicket{ID: id, Stop: delivery("s"+id, 0.02, 0.01, 1)})
		require.NoError(t, err)
	}
	snap := r.Step(context.Background(), 0)
	require.True(t, snap.Reoptimizing)
	require.False(t, snap.IsRunning)

	generated, ok := g.Tick()
	require.True(t, ok, "the reoptimization pause is not a user pause")

	close(planner.gate)
	r.Wait()

	s := r.State()
	require.Len(t, s.TicketQueue, 1, "the generated ticket survives the merge")
	assert.Equal(t, generated.ID, s.TicketQueue[0].ID)
}
