package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticketsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tickets_issued_total",
		Help: "The total number of tickets created",
	})
	ticketsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tickets_issue_duplicates_total",
		Help: "Issuance calls answered with an existing ticket for the same payment",
	})
	transactionRecordFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tickets_transaction_record_failures_total",
		Help: "Tickets committed without their transaction row",
	})
	notificationDispatch = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tickets_notification_dispatch_total",
		Help: "Notification hand-offs after issuance, by status",
	}, []string{"status"})
	scanOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticket_scans_total",
		Help: "Scan validations by outcome",
	}, []string{"outcome"})
	ticketsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tickets_expired_total",
		Help: "Tickets whose stored status was moved to expired by the sweeper",
	})
)
