package route

import "time"

type Route struct {
	ID          string    `json:"id"`
	RouteNumber string    `json:"route_number"`
	RouteName   string    `json:"route_name"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Stop struct {
	ID        string   `json:"id"`
	StopCode  string   `json:"stop_code"`
	StopName  string   `json:"stop_name"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// RouteStop places a stop on a route. The same stop can appear on several
// routes, each time with its own RouteStop id, order and fare offset.
type RouteStop struct {
	ID             string `json:"id"`
	RouteID        string `json:"route_id"`
	StopID         string `json:"stop_id"`
	StopOrder      int    `json:"stop_order"`
	FareFromOrigin int64  `json:"fare_from_origin"`
	Stop           Stop   `json:"stop"`
}

// Fare is the price of travelling between two stops of the same route.
func Fare(from, to RouteStop) int64 {
	d := to.FareFromOrigin - from.FareFromOrigin
	if d < 0 {
		return -d
	}
	return d
}
