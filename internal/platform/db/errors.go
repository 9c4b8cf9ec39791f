package db

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

const errDupEntry = 1062

// IsDuplicateKey: UNIQUE 制約違反（ER_DUP_ENTRY）
func IsDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == errDupEntry
	}
	return false
}
