package memory

import (
	"ledger_engine/internal/repository"
)

var (
	_ repository.ClientRepository = (*ClientRepository)(nil)
	_ repository.OperationStore   = (*OperationStore)(nil)
)
