package window

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/zurustar/mission-vm/pkg/mission"
)

// RunHeadless ヘッドレスモードでミッション選択を実行
// 入力は一覧の番号（1始まり）
func RunHeadless(missions []*mission.Mission, timeout time.Duration, reader io.Reader, writer io.Writer) (*mission.Mission, error) {
	if len(missions) == 0 {
		return nil, errors.New("no missions to select from")
	}

	// ミッションが1つの場合は自動選択
	if len(missions) == 1 {
		fmt.Fprintf(writer, "Auto-selecting mission: [%d] %s\n", missions[0].ID, missions[0].DisplayName())
		return missions[0], nil
	}

	// タイムアウト処理用のコンテキスト
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// ミッション一覧を表示
	fmt.Fprintln(writer, "Available Missions:")
	for i, m := range missions {
		fmt.Fprintf(writer, "  %d: [%d] %s\n", i+1, m.ID, m.DisplayName())
	}
	fmt.Fprintln(writer)

	// 選択を受け付ける
	// チャネルはバッファ付き（タイムアウト後にgoroutineが残らないように）
	scanner := bufio.NewScanner(reader)
	resultCh := make(chan *mission.Mission, 1)
	errCh := make(chan error, 1)

	go func() {
		for {
			fmt.Fprintf(writer, "Select a mission (1-%d) or 'q' to quit: ", len(missions))
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					errCh <- fmt.Errorf("failed to read input: %w", err)
				} else {
					errCh <- errors.New("input closed")
				}
				return
			}

			input := strings.TrimSpace(scanner.Text())

			// 終了コマンド
			if input == "q" || input == "Q" {
				errCh <- errors.New("user cancelled")
				return
			}

			num, err := strconv.Atoi(input)
			if err != nil {
				fmt.Fprintln(writer, "Invalid input. Please enter a number.")
				continue
			}

			if num < 1 || num > len(missions) {
				fmt.Fprintf(writer, "Invalid selection. Please enter a number between 1 and %d.\n", len(missions))
				continue
			}

			selected := missions[num-1]
			fmt.Fprintf(writer, "Selected: [%d] %s\n", selected.ID, selected.DisplayName())
			resultCh <- selected
			return
		}
	}()

	// タイムアウトまたは選択完了を待つ
	select {
	case <-ctx.Done():
		return nil, errors.New("timeout")
	case err := <-errCh:
		return nil, err
	case selected := <-resultCh:
		return selected, nil
	}
}
