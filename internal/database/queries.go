package database

const (
	// Account queries
	queryGetAccount = `
		SELECT id, first_name, last_name, username, language_code, photo_url, phone,
		       balance, referral_code, wallet_address, withdrawal_passkey,
		       has_welcome_bonus, role, version, created_at, updated_at
		FROM accounts
		WHERE id = ?`

	queryInsertAccount = `
		INSERT INTO accounts (id, first_name, last_name, username, language_code, photo_url, phone, role)
		VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?)`

	// Phone merges COALESCE-style: an empty incoming value never clears a
	// stored number. Role is recomputed on every sync.
	queryMergeAccount = `
		UPDATE accounts
		SET first_name = ?, last_name = ?, username = ?, language_code = ?, photo_url = ?,
		    phone = COALESCE(NULLIF(?, ''), phone), role = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	querySetWalletAddress = `
		UPDATE accounts
		SET wallet_address = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND wallet_address IS NULL`

	querySetWithdrawalPasskey = `
		UPDATE accounts
		SET withdrawal_passkey = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND withdrawal_passkey IS NULL`

	querySetReferralCode = `
		UPDATE accounts
		SET referral_code = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND referral_code IS NULL`

	queryMarkWelcomeBonus = `
		UPDATE accounts
		SET has_welcome_bonus = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	// Balance queries
	queryGetBalanceVersion = `
		SELECT balance, version
		FROM accounts
		WHERE id = ?`

	queryUpdateBalance = `
		UPDATE accounts
		SET balance = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?`

	// Transaction queries
	queryInsertTransaction = `
		INSERT INTO transactions (order_id, account_id, amount, currency, type, status, invoice_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetTransaction = `
		SELECT order_id, account_id, amount, currency, type, status, invoice_id, created_at, updated_at
		FROM transactions
		WHERE order_id = ?`

	// The idempotency boundary: the first paid transition is the only one that
	// matches this conditional update, so a duplicate notification can never
	// credit twice.
	queryMarkTransactionPaid = `
		UPDATE transactions
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE order_id = ? AND status != 'completed' AND status != 'wrong_amount'`

	// Bookkeeping overwrite for rows that have not been paid yet. The same
	// paid guard as above: a stale or forged non-paid notification can never
	// pull a settled row back out of its paid status.
	queryOverwriteUnpaidStatus = `
		UPDATE transactions
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE order_id = ? AND status != 'completed' AND status != 'wrong_amount'`

	// Overwrite between the two paid statuses, after the credit has landed.
	queryOverwritePaidStatus = `
		UPDATE transactions
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE order_id = ? AND (status = 'completed' OR status = 'wrong_amount')`

	queryListPendingDeposits = `
		SELECT order_id, account_id, amount, currency, type, status, invoice_id, created_at, updated_at
		FROM transactions
		WHERE type = 'deposit' AND status = 'pending'
		  AND created_at <= ? AND created_at >= ?
		ORDER BY created_at
		LIMIT ?`

	queryListTransactions = `
		SELECT order_id, account_id, amount, currency, type, status, invoice_id, created_at, updated_at
		FROM transactions
		WHERE account_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	// Withdrawal queries
	queryInsertWithdrawal = `
		INSERT INTO withdrawals (id, account_id, amount, currency, address, status)
		VALUES (?, ?, ?, ?, ?, 'pending')`

	queryGetWithdrawal = `
		SELECT id, account_id, amount, currency, address, status, created_at, updated_at
		FROM withdrawals
		WHERE id = ?`

	// Conditional on pending: two racing resolutions produce exactly one
	// effective transition.
	queryResolveWithdrawal = `
		UPDATE withdrawals
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'pending'`

	queryListWithdrawals = `
		SELECT id, account_id, amount, currency, address, status, created_at, updated_at
		FROM withdrawals
		WHERE account_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`
)
