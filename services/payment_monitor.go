package services

import (
	"sync"
	"time"
)

// PaymentMetrics menyimpan metrik terkait pembayaran
type PaymentMetrics struct {
	TotalTransactions  int64            `json:"total_transactions"`
	SuccessfulPayments int64            `json:"successful_payments"`
	FailedPayments     int64            `json:"failed_payments"`
	CounterPayments    int64            `json:"counter_payments"`
	AvgResponseTime    int64            `json:"avg_response_time_ms"`
	ByMethod           map[string]int64 `json:"by_method"`
}

// PaymentMonitor counts gateway attempts and their latency.
type PaymentMonitor struct {
	mutex     sync.Mutex
	metrics   PaymentMetrics
	totalTime time.Duration
}

func NewPaymentMonitor() *PaymentMonitor {
	return &PaymentMonitor{metrics: PaymentMetrics{ByMethod: make(map[string]int64)}}
}

// Record adds one gateway attempt.
func (pm *PaymentMonitor) Record(method PaymentMethod, success bool, elapsed time.Duration) {
	if pm == nil {
		return
	}
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	pm.metrics.TotalTransactions++
	if success {
		pm.metrics.SuccessfulPayments++
	} else {
		pm.metrics.FailedPayments++
	}
	pm.metrics.ByMethod[string(method)]++
	pm.totalTime += elapsed
	pm.metrics.AvgResponseTime = (pm.totalTime / time.Duration(pm.metrics.TotalTransactions)).Milliseconds()
}

// RecordCounter adds one cash payment taken by staff.
func (pm *PaymentMonitor) RecordCounter() {
	if pm == nil {
		return
	}
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	pm.metrics.CounterPayments++
	pm.metrics.ByMethod[string(MethodCash)]++
}

// Snapshot returns a copy of the current metrics.
func (pm *PaymentMonitor) Snapshot() PaymentMetrics {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	out := pm.metrics
	out.ByMethod = make(map[string]int64, len(pm.metrics.ByMethod))
	for k, v := range pm.metrics.ByMethod {
		out.ByMethod[k] = v
	}
	return out
}
