package database

// Key-value store queries
const (
	GetValueSQL = `
		SELECT value FROM kv_store WHERE key = $1`

	UpsertValueSQL = `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()`

	DeleteValueSQL = `
		DELETE FROM kv_store WHERE key = $1`
)
