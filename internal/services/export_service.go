package services

import (
	"context"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"notification-system/internal/entities"
	"notification-system/internal/repositories"
)

var exportHeaders = []interface{}{
	"ID", "Категория", "Приоритет", "Заголовок", "Сообщение", "Прочитано", "Создано",
}

// ExportServiceInterface строит xlsx-выгрузку журнала уведомлений.
type ExportServiceInterface interface {
	BuildReport(ctx context.Context, userID uint64) (*excelize.File, error)
}

type exportService struct {
	notificationRepo repositories.NotificationRepositoryInterface
	logger           *zap.Logger
}

func NewExportService(notificationRepo repositories.NotificationRepositoryInterface, logger *zap.Logger) ExportServiceInterface {
	return &exportService{notificationRepo: notificationRepo, logger: logger}
}

func (s *exportService) BuildReport(ctx context.Context, userID uint64) (*excelize.File, error) {
	data, err := s.notificationRepo.GetAllByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := "Журнал уведомлений"
	f.SetSheetName("Sheet1", sheet)
	f.SetSheetRow(sheet, "A1", &exportHeaders)
	style, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellStyle(sheet, "A1", "G1", style)

	for i, item := range data {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := exportRow(item)
		f.SetSheetRow(sheet, cell, &row)
	}
	f.SetColWidth(sheet, "A", "A", 38)
	f.SetColWidth(sheet, "D", "D", 30)
	f.SetColWidth(sheet, "E", "E", 50)
	f.SetColWidth(sheet, "G", "G", 20)

	return f, nil
}

func exportRow(n *entities.Notification) []interface{} {
	read := "нет"
	if n.Read {
		read = "да"
	}
	return []interface{}{
		n.ID, n.Type, n.Priority, n.Title, n.Message, read,
		n.CreatedAt.Format("02.01.2006 15:04"),
	}
}
