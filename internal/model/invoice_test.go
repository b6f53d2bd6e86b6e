package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionInvoiceStatus(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{InvoiceStatusCreated, InvoiceStatusSent, true},
		{InvoiceStatusSent, InvoiceStatusPaid, true},
		{InvoiceStatusCreated, InvoiceStatusPaid, true},
		{InvoiceStatusCreated, InvoiceStatusCancelled, true},
		{InvoiceStatusSent, InvoiceStatusCancelled, true},
		{InvoiceStatusPaid, InvoiceStatusCancelled, true},
		{InvoiceStatusSent, InvoiceStatusSent, true},
		// the lifecycle never rewinds
		{InvoiceStatusSent, InvoiceStatusCreated, false},
		{InvoiceStatusPaid, InvoiceStatusSent, false},
		{InvoiceStatusPaid, InvoiceStatusCreated, false},
		// nothing leaves Cancelled
		{InvoiceStatusCancelled, InvoiceStatusCreated, false},
		{InvoiceStatusCancelled, InvoiceStatusPaid, false},
		{InvoiceStatusCancelled, InvoiceStatusCancelled, false},
		// unknown values
		{"DRAFT", InvoiceStatusSent, false},
		{InvoiceStatusCreated, "SHIPPED", false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, CanTransitionInvoiceStatus(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestValidInvoiceStatus(t *testing.T) {
	for _, s := range []string{InvoiceStatusCreated, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusCancelled} {
		assert.True(t, ValidInvoiceStatus(s), s)
	}
	assert.False(t, ValidInvoiceStatus("created")) // case sensitive
	assert.False(t, ValidInvoiceStatus(""))
}
