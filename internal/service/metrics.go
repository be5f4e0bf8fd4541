package service

import "github.com/prometheus/client_golang/prometheus"

var (
	ordersPlaced = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total", Help: "Orders successfully placed",
	})
	stockRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_stock_rejections_total", Help: "Orders rejected for insufficient stock",
	})
	ordersCancelled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total", Help: "Orders cancelled and restocked",
	})
)

func init() { prometheus.MustRegister(ordersPlaced, stockRejections, ordersCancelled) }
