package cluster

import (
	"fmt"
	"strings"

	"github.com/rowhpc/row/pkg/workflow"
)

// PartitionSelectionError reports that no partition satisfies the
// request's constraints (or that a named partition's own constraints
// reject it).
type PartitionSelectionError struct {
	Reasons []string
}

func (e *PartitionSelectionError) Error() string {
	return "no partition satisfies the request:\n" + strings.Join(e.Reasons, "\n")
}

// Warning is a non-fatal partition-selection note (e.g. a
// warn_*_not_multiple_of mismatch), surfaced to the caller for logging.
type Warning struct {
	Partition string
	Message   string
}

// FindPartition selects a partition for res applied to nDirectories
// directories. If forcedName is non-empty, only that partition is
// considered (it still must satisfy its own constraints); otherwise
// partitions are tried in listed order and the first that satisfies every
// constraint wins.
func FindPartition(partitions []Partition, forcedName string, res workflow.Resources, nDirectories int) (*Partition, []Warning, error) {
	totalCPUs := TotalCPUs(res, nDirectories)
	totalGPUs := TotalGPUs(res, nDirectories)

	if forcedName != "" {
		for i := range partitions {
			if partitions[i].Name != forcedName {
				continue
			}
			ok, reason, warnings := partitionMatches(&partitions[i], totalCPUs, totalGPUs, true)
			if !ok {
				return nil, nil, &PartitionSelectionError{Reasons: []string{reason}}
			}
			return &partitions[i], warnings, nil
		}
		return nil, nil, &PartitionSelectionError{Reasons: []string{fmt.Sprintf("partition %q not found", forcedName)}}
	}

	var reasons []string
	for i := range partitions {
		ok, reason, warnings := partitionMatches(&partitions[i], totalCPUs, totalGPUs, false)
		if ok {
			return &partitions[i], warnings, nil
		}
		reasons = append(reasons, reason)
	}
	return nil, nil, &PartitionSelectionError{Reasons: reasons}
}

// partitionMatches checks p's constraints in the order spec.md §4.5
// specifies. forced bypasses the prevent_auto_select check, matching "...
// unless the action forces it".
func partitionMatches(p *Partition, totalCPUs, totalGPUs int, forced bool) (bool, string, []Warning) {
	var warnings []Warning

	if p.PreventAutoSelect && !forced {
		return false, fmt.Sprintf("%s: must be manually selected", p.Name), nil
	}
	if p.MaximumCPUsPerJob != nil && totalCPUs > *p.MaximumCPUsPerJob {
		return false, fmt.Sprintf("%s: too many CPUs (%d > %d)", p.Name, totalCPUs, *p.MaximumCPUsPerJob), nil
	}
	if p.MaximumGPUsPerJob != nil && totalGPUs > *p.MaximumGPUsPerJob {
		return false, fmt.Sprintf("%s: too many GPUs (%d > %d)", p.Name, totalGPUs, *p.MaximumGPUsPerJob), nil
	}
	if p.MinimumGPUsPerJob != nil && totalGPUs < *p.MinimumGPUsPerJob {
		return false, fmt.Sprintf("%s: too few GPUs (%d < %d)", p.Name, totalGPUs, *p.MinimumGPUsPerJob), nil
	}
	if p.RequireCPUsMultiple != nil && totalCPUs%*p.RequireCPUsMultiple != 0 {
		return false, fmt.Sprintf("%s: CPU count %d is not a multiple of %d", p.Name, totalCPUs, *p.RequireCPUsMultiple), nil
	}
	if p.RequireGPUsMultiple != nil && totalGPUs%*p.RequireGPUsMultiple != 0 {
		return false, fmt.Sprintf("%s: GPU count %d is not a multiple of %d", p.Name, totalGPUs, *p.RequireGPUsMultiple), nil
	}
	if p.WarnCPUsMultiple != nil && totalCPUs%*p.WarnCPUsMultiple != 0 {
		warnings = append(warnings, Warning{Partition: p.Name, Message: fmt.Sprintf("CPU count %d is not a multiple of %d", totalCPUs, *p.WarnCPUsMultiple)})
	}
	if p.WarnGPUsMultiple != nil && totalGPUs%*p.WarnGPUsMultiple != 0 {
		warnings = append(warnings, Warning{Partition: p.Name, Message: fmt.Sprintf("GPU count %d is not a multiple of %d", totalGPUs, *p.WarnGPUsMultiple)})
	}

	return true, "", warnings
}

// NodeCount returns the minimum node count such that nodes*perNode >=
// total, given a positive perNode.
func NodeCount(total, perNode int) int {
	if perNode <= 0 {
		return 0
	}
	return (total + perNode - 1) / perNode
}
