package domain

import "testing"

func TestCanTransitionOrderStatus(t *testing.T) {
	cases := []struct {
		name    string
		current OrderStatus
		target  OrderStatus
		want    bool
	}{
		{"processing to shipped", OrderStatusProcessing, OrderStatusShipped, true},
		{"processing to cancelled", OrderStatusProcessing, OrderStatusCancelled, true},
		{"processing to delivered skips shipped", OrderStatusProcessing, OrderStatusDelivered, false},
		{"shipped to delivered", OrderStatusShipped, OrderStatusDelivered, true},
		{"shipped to cancelled", OrderStatusShipped, OrderStatusCancelled, true},
		{"shipped to processing rolls back", OrderStatusShipped, OrderStatusProcessing, false},
		{"delivered is terminal", OrderStatusDelivered, OrderStatusShipped, false},
		{"cancelled is terminal", OrderStatusCancelled, OrderStatusProcessing, false},
		{"same state is a no-op", OrderStatusShipped, OrderStatusShipped, true},
		{"unknown current", OrderStatus("draft"), OrderStatusShipped, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTransitionOrderStatus(tc.current, tc.target); got != tc.want {
				t.Fatalf("CanTransitionOrderStatus(%q, %q) = %v, want %v", tc.current, tc.target, got, tc.want)
			}
		})
	}
}

func TestCanTransitionPaymentStatus(t *testing.T) {
	cases := []struct {
		name    string
		current PaymentStatus
		target  PaymentStatus
		want    bool
	}{
		{"pending to approved", PaymentStatusPending, PaymentStatusApproved, true},
		{"pending to rejected", PaymentStatusPending, PaymentStatusRejected, true},
		{"rejected back to pending on resubmission", PaymentStatusRejected, PaymentStatusPending, true},
		{"rejected to approved requires new review", PaymentStatusRejected, PaymentStatusApproved, false},
		{"approved is terminal", PaymentStatusApproved, PaymentStatusPending, false},
		{"same state is a no-op", PaymentStatusPending, PaymentStatusPending, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTransitionPaymentStatus(tc.current, tc.target); got != tc.want {
				t.Fatalf("CanTransitionPaymentStatus(%q, %q) = %v, want %v", tc.current, tc.target, got, tc.want)
			}
		})
	}
}
