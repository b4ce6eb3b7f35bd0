package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/Omikuji/app/dto"
	"github.com/amirphl/Omikuji/models"
	"github.com/amirphl/Omikuji/utils"
	"github.com/xuri/excelize/v2"
)

const historySheetName = "History"

var historyHeader = []string{"session_id", "started_at", "finalized_at", "official", "final_type", "final_label", "final_pick_index"}

// ExportSessionHistory renders the owner's finalized sessions as an xlsx workbook
func (f *SessionFlowImpl) ExportSessionHistory(ctx context.Context, req *dto.ExportSessionHistoryRequest, metadata *ClientMetadata) (resp *dto.ExportSessionHistoryResponse, err error) {
	defer func() {
		err = wrapUnexpected(ctx, f.logger, err, "EXPORT_SESSION_HISTORY_FAILED", "Failed to export session history", metadata)
	}()

	ownerKey, err := normalizeOwnerKey(req.OwnerKey)
	if err != nil {
		return nil, err
	}

	limit := f.gameCfg.HistoryExportLimit
	if limit <= 0 {
		limit = 1000
	}
	sessions, err := f.sessionRepo.ByFilter(ctx, finalizedSessionsFilter(ownerKey, req.Official), "finalized_at DESC", limit, 0)
	if err != nil {
		return nil, err
	}

	content, err := renderHistoryWorkbook(sessions)
	if err != nil {
		return nil, err
	}

	return &dto.ExportSessionHistoryResponse{
		Filename: fmt.Sprintf("omikuji_history_%s.xlsx", f.clock.Now().UTC().Format("20060102")),
		Rows:     len(sessions),
		Content:  content,
	}, nil
}

func renderHistoryWorkbook(sessions []*models.Session) ([]byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), historySheetName); err != nil {
		return nil, err
	}
	if err := xl.SetSheetRow(historySheetName, "A1", &historyHeader); err != nil {
		return nil, err
	}

	for i, s := range sessions {
		finalizedAt := ""
		if s.FinalizedAt != nil {
			finalizedAt = s.FinalizedAt.UTC().Format(time.RFC3339)
		}
		pick := ""
		if s.FinalPickIndex != nil {
			pick = strconv.Itoa(*s.FinalPickIndex)
		}
		record := []string{
			s.UUID.String(),
			s.StartedAt.UTC().Format(time.RFC3339),
			finalizedAt,
			strconv.FormatBool(s.IsOfficialDaily),
			string(utils.Deref(s.FinalType)),
			utils.Deref(s.FinalLabel),
			pick,
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := xl.SetSheetRow(historySheetName, cellRef, &record); err != nil {
			return nil, err
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
