package validate

// StandardValidators returns the fixed set of 15 pre-flight validators
// required by spec.md §4.4, in the deterministic order their results are
// reported.
func StandardValidators() []Validator {
	return []Validator{
		namespaceExistenceValidator{},
		acmVersionValidator{},
		backupOperatorPresenceValidator{},
		dataProtectionApplicationValidator{},
		latestBackupCompletionValidator{},
		backupStorageLocationValidator{},
		managedClusterCoverageValidator{},
		clusterDeploymentPreservationValidator{},
		useManagedServiceAccountValidator{},
		passiveSyncReadinessValidator{},
		autoImportStrategyValidator{},
		clusterHealthValidator{},
		kubeconfigIntegrityValidator{},
		rbacValidator{},
		kubeconfigSizeValidator{},
	}
}
