package store

// initSchema creates the automation tables if they don't exist.
func (s *Store) initSchema() error {
	if err := s.initTenantSchema(); err != nil {
		return err
	}
	if err := s.initRunSchema(); err != nil {
		return err
	}
	if err := s.initBillingSchema(); err != nil {
		return err
	}
	return s.ensureIndexes()
}

func (s *Store) initTenantSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS workspaces (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS social_accounts (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		platform_key TEXT NOT NULL,
		handle TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'needs_login',
		labels TEXT DEFAULT '{}',
		fingerprint_profile TEXT DEFAULT '{}',
		last_health_check_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS credentials (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		social_account_id TEXT NOT NULL,
		credential_type TEXT NOT NULL DEFAULT 'storage_state',
		encrypted_blob BLOB NOT NULL,
		key_version INTEGER NOT NULL DEFAULT 1,
		validated_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS login_sessions (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		social_account_id TEXT NOT NULL,
		platform_key TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'created',
		remote_url TEXT,
		expires_at TIMESTAMP NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	`)
	return err
}

func (s *Store) initRunSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS strategies (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		name TEXT NOT NULL,
		platform_key TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		config TEXT DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		strategy_id TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		frequency TEXT NOT NULL DEFAULT 'manual',
		schedule_spec TEXT DEFAULT '{}',
		random_config TEXT DEFAULT '{}',
		account_selector TEXT DEFAULT '{}',
		max_parallel INTEGER NOT NULL DEFAULT 1,
		next_run_at TIMESTAMP,
		last_run_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		schedule_id TEXT,
		strategy_id TEXT NOT NULL,
		triggered_by TEXT,
		status TEXT NOT NULL DEFAULT 'queued',
		started_at TIMESTAMP,
		finished_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS account_runs (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		run_id TEXT NOT NULL,
		social_account_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'queued',
		error_code TEXT,
		started_at TIMESTAMP,
		finished_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS actions (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		account_run_id TEXT NOT NULL,
		action_type TEXT NOT NULL,
		platform_key TEXT NOT NULL,
		target_external_id TEXT,
		target_url TEXT,
		idempotency_key TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'queued',
		error_code TEXT,
		metadata TEXT DEFAULT '{}',
		started_at TIMESTAMP,
		finished_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		action_id TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'screenshot',
		storage_key TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);
	`)
	return err
}

func (s *Store) initBillingSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS workspace_subscriptions (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		plan_key TEXT NOT NULL DEFAULT 'free',
		seats INTEGER NOT NULL DEFAULT 1,
		max_social_accounts INTEGER,
		max_parallel_sessions INTEGER,
		automation_runtime_hours INTEGER,
		artifact_retention_days INTEGER,
		current_period_start TIMESTAMP,
		current_period_end TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS workspace_usage_monthly (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		period_start TIMESTAMP NOT NULL,
		automation_runtime_seconds INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	`)
	return err
}

// ensureIndexes creates the normative unique indexes plus lookup indexes.
func (s *Store) ensureIndexes() error {
	stmts := []string{
		// Normative uniqueness: idempotent action materialization converges here.
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_actions_workspace_idem ON actions(workspace_id, idempotency_key)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_credentials_account_type ON credentials(social_account_id, credential_type)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_usage_workspace_period ON workspace_usage_monthly(workspace_id, period_start)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_subscriptions_workspace ON workspace_subscriptions(workspace_id)`,

		`CREATE INDEX IF NOT EXISTS idx_social_accounts_workspace ON social_accounts(workspace_id)`,
		`CREATE INDEX IF NOT EXISTS idx_schedules_due ON schedules(enabled, frequency, next_run_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_schedule_status ON runs(schedule_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_account_runs_run ON account_runs(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_account_runs_status ON account_runs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_account_run ON actions(account_run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_artifacts_created ON artifacts(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_artifacts_workspace ON artifacts(workspace_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
