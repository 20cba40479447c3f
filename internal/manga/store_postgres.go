package manga

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anyuan-chen/manga/internal/platform/database"
)

const panelColumns = `p.id, p.chapter_id, p.japanese_text, p.translation, p.order_index,
	p.auto_disqualify, p.page_number, p.x, p.y, p.width, p.height`

const chapterColumns = `id, title, order_index, file_path, predicted_jlpt, unique_words,
	unique_grammar, panel_count, total_characters, avg_word_jlpt, avg_grammar_jlpt`

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store over an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate applies the embedded schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return database.Migrate(ctx, s.pool, Migrations())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPanel(row scanner) (*Panel, error) {
	var p Panel
	var page, x, y, w, h *int
	if err := row.Scan(
		&p.ID, &p.ChapterID, &p.Text, &p.Translation, &p.OrderIndex,
		&p.AutoDisqualify, &page, &x, &y, &w, &h,
	); err != nil {
		return nil, err
	}
	if page != nil && x != nil && y != nil && w != nil && h != nil {
		p.Placement = &Placement{Page: *page, X: *x, Y: *y, Width: *w, Height: *h}
	}
	p.Words = []Word{}
	p.Grammar = []GrammarStructure{}
	return &p, nil
}

func scanChapter(row scanner) (*Chapter, error) {
	var c Chapter
	if err := row.Scan(
		&c.ID, &c.Title, &c.OrderIndex, &c.FilePath,
		&c.Stats.PredictedJLPT, &c.Stats.UniqueWords, &c.Stats.UniqueGrammar,
		&c.Stats.PanelCount, &c.Stats.TotalCharacters,
		&c.Stats.AvgWordJLPT, &c.Stats.AvgGrammarJLPT,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) GetPanel(ctx context.Context, panelID string) (*Panel, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	p, err := scanPanel(s.pool.QueryRow(ctx,
		`SELECT `+panelColumns+` FROM panels p WHERE p.id = $1`, panelID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("panel %s: %w", panelID, ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get panel", err)
	}

	panels := []Panel{*p}
	if err := s.attachConcepts(ctx, panels); err != nil {
		return nil, err
	}
	return &panels[0], nil
}

// queryPanels runs a panel query and attaches concepts to the results.
func (s *PostgresStore) queryPanels(ctx context.Context, op, sql string, args ...any) ([]Panel, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	panels := []Panel{}
	for rows.Next() {
		p, err := scanPanel(rows)
		if err != nil {
			return nil, unavailable(op, err)
		}
		panels = append(panels, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}

	if err := s.attachConcepts(ctx, panels); err != nil {
		return nil, err
	}
	return panels, nil
}

// attachConcepts loads tagged words and grammar for panels in two queries.
func (s *PostgresStore) attachConcepts(ctx context.Context, panels []Panel) error {
	if len(panels) == 0 {
		return nil
	}
	ids := make([]string, len(panels))
	index := make(map[string]int, len(panels))
	for i, p := range panels {
		ids[i] = p.ID
		index[p.ID] = i
	}

	rows, err := s.pool.Query(ctx,
		`SELECT pw.panel_id, w.id, w.japanese, w.reading, w.meaning, w.part_of_speech, w.jlpt_level
		 FROM panel_words pw
		 JOIN words w ON w.id = pw.word_id
		 WHERE pw.panel_id = ANY($1)
		 ORDER BY pw.panel_id, w.id`,
		ids,
	)
	if err != nil {
		return unavailable("query panel words", err)
	}
	for rows.Next() {
		var panelID string
		var w Word
		if err := rows.Scan(&panelID, &w.ID, &w.Japanese, &w.Reading, &w.Meaning, &w.PartOfSpeech, &w.JLPT); err != nil {
			rows.Close()
			return unavailable("scan panel word", err)
		}
		i := index[panelID]
		panels[i].Words = append(panels[i].Words, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return unavailable("query panel words", err)
	}

	rows, err = s.pool.Query(ctx,
		`SELECT pg.panel_id, g.id, g.name, g.pattern, g.explanation, g.jlpt_level
		 FROM panel_grammar_structures pg
		 JOIN grammar_structures g ON g.id = pg.grammar_id
		 WHERE pg.panel_id = ANY($1)
		 ORDER BY pg.panel_id, g.id`,
		ids,
	)
	if err != nil {
		return unavailable("query panel grammar", err)
	}
	defer rows.Close()
	for rows.Next() {
		var panelID string
		var g GrammarStructure
		if err := rows.Scan(&panelID, &g.ID, &g.Name, &g.Pattern, &g.Explanation, &g.JLPT); err != nil {
			return unavailable("scan panel grammar", err)
		}
		i := index[panelID]
		panels[i].Grammar = append(panels[i].Grammar, g)
	}
	if err := rows.Err(); err != nil {
		return unavailable("query panel grammar", err)
	}
	return nil
}

func (s *PostgresStore) ListChapters(ctx context.Context) ([]Chapter, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT `+chapterColumns+` FROM chapters ORDER BY order_index, id`)
	if err != nil {
		return nil, unavailable("list chapters", err)
	}
	defer rows.Close()

	chapters := []Chapter{}
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, unavailable("scan chapter", err)
		}
		chapters = append(chapters, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list chapters", err)
	}
	return chapters, nil
}

func (s *PostgresStore) GetChapter(ctx context.Context, chapterID string) (*Chapter, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c, err := scanChapter(s.pool.QueryRow(ctx,
		`SELECT `+chapterColumns+` FROM chapters WHERE id = $1`, chapterID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("chapter %s: %w", chapterID, ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get chapter", err)
	}
	return c, nil
}

func (s *PostgresStore) ChapterPanels(ctx context.Context, chapterID string) ([]Panel, error) {
	if _, err := s.GetChapter(ctx, chapterID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return s.queryPanels(ctx, "chapter panels",
		`SELECT `+panelColumns+` FROM panels p WHERE p.chapter_id = $1 ORDER BY p.order_index, p.id`,
		chapterID,
	)
}

func (s *PostgresStore) SaveChapterStats(ctx context.Context, chapterID string, st ChapterStats) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx,
		`UPDATE chapters SET
		   predicted_jlpt = $2, unique_words = $3, unique_grammar = $4, panel_count = $5,
		   total_characters = $6, avg_word_jlpt = $7, avg_grammar_jlpt = $8, updated_at = now()
		 WHERE id = $1`,
		chapterID, st.PredictedJLPT, st.UniqueWords, st.UniqueGrammar, st.PanelCount,
		st.TotalCharacters, st.AvgWordJLPT, st.AvgGrammarJLPT,
	)
	if err != nil {
		return unavailable("save chapter stats", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("chapter %s: %w", chapterID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) SetPlacement(ctx context.Context, panelID string, pl Placement) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx,
		`UPDATE panels SET page_number = $2, x = $3, y = $4, width = $5, height = $6 WHERE id = $1`,
		panelID, pl.Page, pl.X, pl.Y, pl.Width, pl.Height,
	)
	if err != nil {
		return unavailable("set placement", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("panel %s: %w", panelID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) LabeledPanels(ctx context.Context, chapterID string) ([]Panel, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return s.queryPanels(ctx, "labeled panels",
		`SELECT `+panelColumns+` FROM panels p
		 WHERE p.chapter_id = $1
		   AND NOT p.auto_disqualify
		   AND p.page_number IS NOT NULL AND p.x IS NOT NULL AND p.y IS NOT NULL
		   AND p.width IS NOT NULL AND p.height IS NOT NULL
		 ORDER BY p.order_index, p.id`,
		chapterID,
	)
}

func (s *PostgresStore) UnlabeledPanels(ctx context.Context) ([]Panel, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return s.queryPanels(ctx, "unlabeled panels",
		`SELECT `+panelColumns+` FROM panels p
		 JOIN chapters c ON c.id = p.chapter_id
		 WHERE p.page_number IS NULL OR p.x IS NULL OR p.y IS NULL
		    OR p.width IS NULL OR p.height IS NULL
		 ORDER BY c.order_index, p.order_index, p.id`,
	)
}

func (s *PostgresStore) UpsertChapter(ctx context.Context, c Chapter) error {
	if c.ID == "" {
		return fmt.Errorf("%w: chapter id is required", ErrInvalidInput)
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO chapters (id, title, order_index, file_path)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title,
		   order_index = EXCLUDED.order_index,
		   file_path = EXCLUDED.file_path,
		   updated_at = now()`,
		c.ID, c.Title, c.OrderIndex, c.FilePath,
	)
	if err != nil {
		return unavailable("upsert chapter", err)
	}
	return nil
}

func (s *PostgresStore) UpsertPanel(ctx context.Context, p Panel) error {
	if p.ID == "" {
		return fmt.Errorf("%w: panel id is required", ErrInvalidInput)
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return unavailable("begin upsert panel", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var page, x, y, w, h *int
	if pl := p.Placement; pl != nil {
		page, x, y, w, h = &pl.Page, &pl.X, &pl.Y, &pl.Width, &pl.Height
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO panels (id, chapter_id, japanese_text, translation, order_index, auto_disqualify,
		                     page_number, x, y, width, height)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		   chapter_id = EXCLUDED.chapter_id,
		   japanese_text = EXCLUDED.japanese_text,
		   translation = EXCLUDED.translation,
		   order_index = EXCLUDED.order_index,
		   auto_disqualify = EXCLUDED.auto_disqualify,
		   page_number = COALESCE(EXCLUDED.page_number, panels.page_number),
		   x = COALESCE(EXCLUDED.x, panels.x),
		   y = COALESCE(EXCLUDED.y, panels.y),
		   width = COALESCE(EXCLUDED.width, panels.width),
		   height = COALESCE(EXCLUDED.height, panels.height)`,
		p.ID, p.ChapterID, p.Text, p.Translation, p.OrderIndex, p.AutoDisqualify,
		page, x, y, w, h,
	); err != nil {
		return unavailable("upsert panel", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM panel_words WHERE panel_id = $1`, p.ID); err != nil {
		return unavailable("clear panel words", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM panel_grammar_structures WHERE panel_id = $1`, p.ID); err != nil {
		return unavailable("clear panel grammar", err)
	}

	batch := &pgx.Batch{}
	for _, w := range p.Words {
		batch.Queue(
			`INSERT INTO words (id, japanese, reading, meaning, part_of_speech, jlpt_level)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO UPDATE SET
			   japanese = EXCLUDED.japanese, reading = EXCLUDED.reading, meaning = EXCLUDED.meaning,
			   part_of_speech = EXCLUDED.part_of_speech, jlpt_level = EXCLUDED.jlpt_level`,
			w.ID, w.Japanese, w.Reading, w.Meaning, w.PartOfSpeech, w.JLPT,
		)
		batch.Queue(
			`INSERT INTO panel_words (panel_id, word_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			p.ID, w.ID,
		)
	}
	for _, g := range p.Grammar {
		batch.Queue(
			`INSERT INTO grammar_structures (id, name, pattern, explanation, jlpt_level)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO UPDATE SET
			   name = EXCLUDED.name, pattern = EXCLUDED.pattern,
			   explanation = EXCLUDED.explanation, jlpt_level = EXCLUDED.jlpt_level`,
			g.ID, g.Name, g.Pattern, g.Explanation, g.JLPT,
		)
		batch.Queue(
			`INSERT INTO panel_grammar_structures (panel_id, grammar_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			p.ID, g.ID,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return unavailable("upsert panel concepts", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return unavailable("commit upsert panel", err)
	}
	return nil
}
