package enums

// CascadeStatus is the lifecycle of a tier cascade job.
type CascadeStatus string

const (
	CascadeStatusRunning    CascadeStatus = "running"
	CascadeStatusIncomplete CascadeStatus = "incomplete"
	CascadeStatusCompleted  CascadeStatus = "completed"
	// A newer cascade for the same series replaced this one before it finished.
	CascadeStatusSuperseded CascadeStatus = "superseded"
)

// String implements fmt.Stringer.
func (s CascadeStatus) String() string {
	return string(s)
}
