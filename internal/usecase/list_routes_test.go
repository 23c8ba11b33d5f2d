package usecase

import (
	"context"
	"errors"
	"testing"

	"busticket/internal/infrastructure/memory"
)

func TestRouteCatalog(t *testing.T) {
	store := memory.NewStore()
	seedRoutes(store)
	uc := NewRouteCatalog(store, nil, testLogger())

	routes, err := uc.ListRoutes(context.Background())
	if err != nil {
		t.Fatalf("ListRoutes: %v", err)
	}
	if len(routes) != 2 || routes[0].RouteNumber != "R1" || routes[1].RouteNumber != "R2" {
		t.Errorf("routes = %+v", routes)
	}

	stops, err := uc.GetRouteStops(context.Background(), routeR1)
	if err != nil {
		t.Fatalf("GetRouteStops: %v", err)
	}
	wantNames := []string{"Ameerpet", "Begumpet", "Secunderabad"}
	wantFares := []int64{0, 25, 40}
	if len(stops) != len(wantNames) {
		t.Fatalf("stops = %d, want %d", len(stops), len(wantNames))
	}
	for i, s := range stops {
		if s.Stop.StopName != wantNames[i] || s.FareFromOrigin != wantFares[i] {
			t.Errorf("stop %d = %s %d, want %s %d", i, s.Stop.StopName, s.FareFromOrigin, wantNames[i], wantFares[i])
		}
	}

	if _, err := uc.GetRouteStops(context.Background(), "33333333-3333-4333-8333-333333333333"); !errors.Is(err, ErrRouteNotFound) {
		t.Errorf("GetRouteStops(unknown) = %v, want ErrRouteNotFound", err)
	}
}
