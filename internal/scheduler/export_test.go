package scheduler

import "sort"

// knownIDs returns the shard IDs that answered on the last successful probe, sorted.
func (fm *FleetMonitor) knownIDs() []string {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	ids := make([]string, 0, len(fm.known))
	for id := range fm.known {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
