package services

import (
	"time"

	"fundsledger/domain/entities"

	"github.com/shopspring/decimal"
)

type noopMetrics struct{}

func (noopMetrics) RecordOperation(string, entities.ErrorCode, time.Duration) {}
func (noopMetrics) RecordCommitRetry(string) {}
func (noopMetrics) RecordAllocation(entities.FundType, decimal.Decimal) {}
func (noopMetrics) RecordPromosExpired(int) {}
