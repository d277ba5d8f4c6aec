package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Dimasikck/teacher-tool/internal/application"
	"github.com/Dimasikck/teacher-tool/internal/timetable"
)

func newStatusCmd(a *app) *cobra.Command {
	var failOnDrift bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report calendar events that have no journal lesson",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(service *application.ScheduleService) error {
				status, err := service.SyncStatus(cmd.Context(), a.opts.ownerID)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "событий в календаре: %d\n", status.CalendarEventCount)
				fmt.Fprintf(a.stdout, "занятий в журнале:   %d\n", status.JournalLessonCount)
				if status.InSync {
					fmt.Fprintln(a.stdout, "календарь и журнал синхронизированы")
					return nil
				}
				fmt.Fprintf(a.stdout, "без занятия в журнале: %d\n", status.MissingCount)
				if failOnDrift {
					return withCode(exitDrift, fmt.Errorf("обнаружено рассогласование: %d", status.MissingCount))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&failOnDrift, "fail-on-drift", false, "exit with code 2 when events lack journal lessons")
	return cmd
}

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Create journal lessons for every calendar event that lacks one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(service *application.ScheduleService) error {
				summary, err := service.Sync(cmd.Context(), a.opts.ownerID)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "создано занятий: %d\n", summary.CreatedCount)
				fmt.Fprintf(a.stdout, "уже синхронизировано: %d\n", summary.AlreadySyncedCount)
				return nil
			})
		},
	}
}

type importOptions struct {
	file     string
	sheet    string
	titleCol int
	groupCol int
	dateCol  int
	timeCol  int
	roomCol  int
	startRow int
	dryRun   bool
}

func newImportCmd(a *app) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a timetable from an xlsx or csv file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readRows(opts.file, opts.sheet)
			if err != nil {
				return err
			}

			req := application.ImportRequest{
				OwnerID:  a.opts.ownerID,
				Rows:     rows,
				Mapping:  opts.mapping(),
				StartRow: opts.startRow,
			}
			run := a.withService
			if opts.dryRun {
				run = a.withDryRunService
			}
			return run(cmd.Context(), func(service *application.ScheduleService) error {
				summary, err := service.BulkImport(cmd.Context(), req)
				if err != nil {
					return err
				}
				printImportSummary(a, summary, opts.dryRun)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "timetable file (.xlsx or .csv, required)")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "worksheet name (default: first sheet)")
	cmd.Flags().IntVar(&opts.titleCol, "title-col", 0, "zero-based column of the subject")
	cmd.Flags().IntVar(&opts.groupCol, "group-col", 1, "zero-based column of the group list")
	cmd.Flags().IntVar(&opts.dateCol, "date-col", 2, "zero-based column of the date")
	cmd.Flags().IntVar(&opts.timeCol, "time-col", 3, "zero-based column of the time range")
	cmd.Flags().IntVar(&opts.roomCol, "room-col", -1, "zero-based column of the room (-1: none)")
	cmd.Flags().IntVar(&opts.startRow, "start-row", 1, "first data row, zero-based (skips the header by default)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "preview the import without writing to the database")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func (o importOptions) mapping() timetable.ColumnMapping {
	mapping := timetable.ColumnMapping{
		Title: o.titleCol,
		Group: o.groupCol,
		Date:  o.dateCol,
		Time:  o.timeCol,
	}
	if o.roomCol >= 0 {
		room := o.roomCol
		mapping.Room = &room
	}
	return mapping
}

func readRows(path, sheet string) ([][]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть файл: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return timetable.ReadCSV(f)
	}
	return timetable.ReadWorkbook(f, sheet)
}

func printImportSummary(a *app, summary application.ImportSummary, dryRun bool) {
	if dryRun {
		fmt.Fprintln(a.stdout, "пробный запуск: изменения не сохранены")
	}
	fmt.Fprintf(a.stdout, "создано: %d\n", summary.CreatedCount)
	fmt.Fprintf(a.stdout, "дубликатов: %d\n", summary.DuplicateCount)
	if len(summary.GroupsCreated) > 0 {
		fmt.Fprintf(a.stdout, "новые группы: %s\n", strings.Join(summary.GroupsCreated, ", "))
	}
	for _, issue := range summary.SkippedRows {
		fmt.Fprintf(a.stdout, "пропущена строка %d: %s\n", issue.Row+1, issue.Reason)
	}
	for _, label := range summary.Lessons {
		fmt.Fprintf(a.stdout, "  %s\n", label)
	}
}
