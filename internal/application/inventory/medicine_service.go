package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/pharmaledger/backend/internal/domain/inventory"
	"github.com/pharmaledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// MedicineService provides the medicine master data and stock total operations
type MedicineService struct {
	txScope      TransactionScope
	medicineRepo inventory.MedicineRepository
	ledger       *StockLedger
	logger       *zap.Logger
}

// NewMedicineService creates a new MedicineService
func NewMedicineService(
	txScope TransactionScope,
	medicineRepo inventory.MedicineRepository,
	ledger *StockLedger,
	logger *zap.Logger,
) *MedicineService {
	return &MedicineService{
		txScope:      txScope,
		medicineRepo: medicineRepo,
		ledger:       ledger,
		logger:       logger,
	}
}

// Create registers a new medicine with zero stock
func (s *MedicineService) Create(ctx context.Context, input CreateMedicineInput) (*MedicineResponse, error) {
	medicine, err := inventory.NewMedicine(inventory.MedicineAttributes{
		Code:          input.Code,
		Name:          input.Name,
		GenericName:   input.GenericName,
		Category:      input.Category,
		DosageForm:    input.DosageForm,
		Unit:          input.Unit,
		StockMinimum:  input.StockMinimum,
		PurchasePrice: input.PurchasePrice,
		SellingPrice:  input.SellingPrice,
	})
	if err != nil {
		return nil, err
	}

	exists, err := s.medicineRepo.ExistsByCode(ctx, medicine.Code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.NewDomainError(shared.CodeAlreadyExists, "Medicine code already exists").WithEntity(medicine.Code)
	}

	if err := s.medicineRepo.Save(ctx, medicine); err != nil {
		s.logger.Error("Failed to create medicine", zap.Error(err))
		return nil, err
	}

	s.logger.Info("Medicine created",
		zap.String("medicine_id", medicine.ID.String()),
		zap.String("code", medicine.Code))

	response := ToMedicineResponse(medicine)
	return &response, nil
}

// GetByID retrieves a medicine by ID
func (s *MedicineService) GetByID(ctx context.Context, id uuid.UUID) (*MedicineResponse, error) {
	medicine, err := s.medicineRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToMedicineResponse(medicine)
	return &response, nil
}

// List retrieves a page of medicines
func (s *MedicineService) List(ctx context.Context, filter ListFilter) ([]MedicineResponse, int64, error) {
	f := filter.toFilter()
	total, err := s.medicineRepo.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	medicines, err := s.medicineRepo.FindAll(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return ToMedicineResponses(medicines), total, nil
}

// ListLowStock retrieves medicines at or below their minimum stock
func (s *MedicineService) ListLowStock(ctx context.Context, filter ListFilter) ([]MedicineResponse, error) {
	medicines, err := s.medicineRepo.FindLowStock(ctx, filter.toFilter())
	if err != nil {
		return nil, err
	}
	return ToMedicineResponses(medicines), nil
}

// RecomputeTotal re-sums the active batches of a medicine
func (s *MedicineService) RecomputeTotal(ctx context.Context, id uuid.UUID) (*MedicineResponse, error) {
	var result *inventory.Medicine
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		medicine, err := s.ledger.RecomputeTotal(ctx, repos, id)
		if err != nil {
			return err
		}
		result = medicine
		return nil
	})
	if err != nil {
		return nil, err
	}

	response := ToMedicineResponse(result)
	return &response, nil
}
