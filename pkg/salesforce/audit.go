package salesforce

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultAuditObject is the custom object that receives audit records.
const DefaultAuditObject = "Listing_Audit__c"

// textLimit is the size of a Salesforce long text area field.
const textLimit = 32768

// ListingAudit is one property's audit outcome.
type ListingAudit struct {
	RunID              string
	PropertyID         string
	Address            string
	OverallConsistency int
	Band               string
	CriticalIssues     []string
	Suggestions        []string
	ErrorSources       []string
	ComparedAt         time.Time
}

// Record renders the audit as Listing_Audit__c field values.
func (a ListingAudit) Record() map[string]any {
	return map[string]any{
		"Name":                    truncate(a.PropertyID+" "+a.ComparedAt.UTC().Format("2006-01-02"), 80),
		"Run_Id__c":               a.RunID,
		"Property_Id__c":          a.PropertyID,
		"Address__c":              truncate(a.Address, 255),
		"Overall_Consistency__c":  a.OverallConsistency,
		"Band__c":                 a.Band,
		"Critical_Issue_Count__c": len(a.CriticalIssues),
		"Critical_Issues__c":      truncate(strings.Join(a.CriticalIssues, "\n"), textLimit),
		"Suggestions__c":          truncate(strings.Join(a.Suggestions, "\n"), textLimit),
		"Failed_Sources__c":       truncate(strings.Join(a.ErrorSources, ";"), 255),
		"Compared_At__c":          a.ComparedAt.UTC().Format(time.RFC3339),
	}
}

// PushAudits inserts audits in collection batches of at most batchSize
// records. Results are returned in input order; a transport error stops the
// push and returns the results collected so far.
func PushAudits(ctx context.Context, c Client, sObject string, audits []ListingAudit, batchSize int) ([]CollectionResult, error) {
	if len(audits) == 0 {
		return nil, nil
	}
	if sObject == "" {
		sObject = DefaultAuditObject
	}
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}

	var all []CollectionResult
	for start := 0; start < len(audits); start += batchSize {
		end := min(start+batchSize, len(audits))

		records := make([]map[string]any, 0, end-start)
		for _, a := range audits[start:end] {
			records = append(records, a.Record())
		}

		results, err := c.InsertCollection(ctx, sObject, records)
		if err != nil {
			return all, eris.Wrap(err, fmt.Sprintf("sf: push audits batch %d-%d", start, end))
		}
		all = append(all, results...)
	}
	return all, nil
}

// Failed counts unsuccessful results.
func Failed(results []CollectionResult) int {
	n := 0
	for _, r := range results {
		if !r.Success {
			n++
		}
	}
	return n
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
