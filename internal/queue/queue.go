// Package queue обмен событиями с платёжным шлюзом через RabbitMQ
package queue

// Очереди. Все durable, сообщения persistent JSON.
const (
	PaymentConfirmedQueue = "payment.confirmed"
	RefundRequestedQueue  = "payment.refund_requested"
	BookingCancelledQueue = "booking.cancelled"
	BookingApprovedQueue  = "booking.approved"
)

var outboundQueues = []string{RefundRequestedQueue, BookingCancelledQueue, BookingApprovedQueue}
