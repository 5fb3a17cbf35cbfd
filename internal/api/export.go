package api

import (
	"net/http"

	"github.com/lvleste/vtr-estoque/internal/domain/inventory"
	"github.com/lvleste/vtr-estoque/internal/syncengine"
	"github.com/xuri/excelize/v2"
)

// export streams the three collections as one workbook, the same
// flattening the spreadsheet holds remotely.
func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	f, err := buildWorkbook(h.engine.Materials(), h.engine.Requests(), h.engine.Movements())
	if err != nil {
		h.log.Error("export failed", "err", err)
		writeError(w, http.StatusInternalServerError, "falha ao gerar planilha")
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="estoque-vtr.xlsx"`)
	if err := f.Write(w); err != nil {
		h.log.Error("export write failed", "err", err)
	}
}

func setRows(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func buildWorkbook(
	materials []syncengine.MaterialStock,
	requests []inventory.MaterialRequest,
	movements []inventory.StockMovement,
) (*excelize.File, error) {
	f := excelize.NewFile()

	const matSheet = "Materiais"
	def := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(def, matSheet); err != nil {
		return nil, err
	}

	matRows := make([][]interface{}, 0, len(materials))
	for _, m := range materials {
		matRows = append(matRows, []interface{}{m.Code, m.Name, m.Stock, m.Available})
	}
	if err := setRows(f, matSheet,
		[]interface{}{"código", "material", "estoque", "disponível"}, matRows); err != nil {
		return nil, err
	}

	const reqSheet = "Pedidos"
	if _, err := f.NewSheet(reqSheet); err != nil {
		return nil, err
	}
	reqRows := make([][]interface{}, 0, len(requests))
	for _, req := range requests {
		for _, it := range req.Items {
			reqRows = append(reqRows, []interface{}{
				req.ID, req.VTR, req.Timestamp, string(req.Status),
				it.MaterialID, it.Quantity,
			})
		}
	}
	if err := setRows(f, reqSheet,
		[]interface{}{"pedido", "vtr", "data", "status", "material", "quantidade"}, reqRows); err != nil {
		return nil, err
	}

	const movSheet = "Movimentações"
	if _, err := f.NewSheet(movSheet); err != nil {
		return nil, err
	}
	movRows := make([][]interface{}, 0, len(movements))
	for _, mv := range movements {
		movRows = append(movRows, []interface{}{
			mv.ID, mv.MaterialID, string(mv.Type), mv.Quantity, mv.Timestamp, mv.Reason,
		})
	}
	if err := setRows(f, movSheet,
		[]interface{}{"id", "material", "tipo", "quantidade", "data", "motivo"}, movRows); err != nil {
		return nil, err
	}

	return f, nil
}
