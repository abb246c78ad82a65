package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsTable_Default(t *testing.T) {
	t.Setenv("ATHENA_TABLE", "")
	assert.Equal(t, "finance_metrics", metricsTable())

	t.Setenv("ATHENA_TABLE", "finance_metrics_v2")
	assert.Equal(t, "finance_metrics_v2", metricsTable())
}
