package domain

// DeploymentFilter defines filtering options for deployments
type DeploymentFilter struct {
	Tag     string
	ChainID uint64
	// Name matches deployments whose name contains it (case-insensitive)
	Name string
}
