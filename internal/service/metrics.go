package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_orders_created_total",
		Help: "Orders created, by initial status.",
	}, []string{"status"})

	orderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_order_transitions_total",
		Help: "Order status transitions, by target status.",
	}, []string{"to"})

	reviewsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_reviews_created_total",
		Help: "Reviews created.",
	})

	loginFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_login_failures_total",
		Help: "Rejected login attempts, by reason.",
	}, []string{"reason"})
)
