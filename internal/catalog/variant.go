package catalog

import (
	"fmt"

	"github.com/cuongbtq/recon-queue/internal/queue/domain"
)

// Variant is one parameterized queue: its own persisted slot, backend domain
// and the job types it accepts.
type Variant struct {
	Name     string           `json:"name"`
	SlotKey  string           `json:"slotKey"`
	Domain   string           `json:"domain"`
	JobTypes []domain.JobType `json:"jobTypes"`
}

// Serves reports whether jobType may be enqueued on this variant.
func (v Variant) Serves(jobType domain.JobType) bool {
	for _, jt := range v.JobTypes {
		if jt == jobType {
			return true
		}
	}
	return false
}

var (
	Reconciliation = Variant{
		Name:     "reconciliation",
		SlotKey:  "reconciliation_queue",
		Domain:   "conciliation",
		JobTypes: []domain.JobType{domain.JobTypeReconciliation},
	}

	Settlement = Variant{
		Name:     "settlement",
		SlotKey:  "settlement_queue",
		Domain:   "liquidation",
		JobTypes: []domain.JobType{domain.JobTypeSettlement},
	}
)

// Variants returns every queue variant the service runs.
func Variants() []Variant {
	return []Variant{Reconciliation, Settlement}
}

// LookupVariant finds a variant by name.
func LookupVariant(name string) (Variant, error) {
	for _, v := range Variants() {
		if v.Name == name {
			return v, nil
		}
	}
	return Variant{}, fmt.Errorf("%w: %q", domain.ErrUnknownVariant, name)
}
