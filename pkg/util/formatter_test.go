package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSI(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.NaN(), "0"},
		{1, "1"},
		{4700, "4.7k"},
		{100e3, "100k"},
		{1e6, "1M"},
		{2.2e-8, "22n"},
		{0.5, "500m"},
		{250e-12, "250p"},
		{-1500, "-1.5k"},
		{8, "8"},
		{999.996, "1k"},
		{123456, "123.46k"},
		{1e-18, "0.001f"},
		{1e-25, "1e-25"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSI(tt.in), "FormatSI(%g)", tt.in)
	}
}

func TestFormatValueFactor(t *testing.T) {
	assert.Equal(t, "1.500 mA", FormatValueFactor(1.5e-3, "A"))
	assert.Equal(t, "212.345 V", FormatValueFactor(212.345, "V"))
	assert.Equal(t, "100.000 kOhm", FormatValueFactor(100e3, "Ohm"))
}
