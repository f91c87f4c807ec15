package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- CONVERSATION TABLE (append-only, written by the capture layer)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS conversation SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON conversation TYPE string;
    DEFINE FIELD IF NOT EXISTS title ON conversation TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON conversation TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS conversation_user ON conversation FIELDS user_id;
    DEFINE INDEX IF NOT EXISTS conversation_created ON conversation FIELDS created_at;

    -- ==========================================================================
    -- MESSAGE TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS message SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS conversation_id ON message TYPE string;
    DEFINE FIELD IF NOT EXISTS user_id ON message TYPE string;
    DEFINE FIELD IF NOT EXISTS role ON message TYPE string
        ASSERT $value IN ["user", "assistant", "system"];
    DEFINE FIELD IF NOT EXISTS content ON message TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON message TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS message_conversation ON message FIELDS conversation_id;
    DEFINE INDEX IF NOT EXISTS message_user ON message FIELDS user_id;

    -- ==========================================================================
    -- ANALYSIS LEDGER
    -- ==========================================================================
    -- One row per (user, conversation). The record id is the compound
    -- "<user_id>:<conversation_id>", so a second CREATE for the same pair
    -- fails at the database. That failure is the idempotency barrier.
    DEFINE TABLE IF NOT EXISTS analysis SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON analysis TYPE string;
    DEFINE FIELD IF NOT EXISTS conversation_id ON analysis TYPE string;
    DEFINE FIELD IF NOT EXISTS processing_status ON analysis TYPE string
        ASSERT $value IN ["completed", "skipped", "failed"];
    DEFINE FIELD IF NOT EXISTS analysis_result ON analysis TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS skip_reason ON analysis TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS quality_score ON analysis TYPE option<float>;
    DEFINE FIELD IF NOT EXISTS message_count ON analysis TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS total_tokens ON analysis TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS processing_duration_ms ON analysis TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS extraction_metadata ON analysis TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created_at ON analysis TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS analysis_user ON analysis FIELDS user_id;
    DEFINE INDEX IF NOT EXISTS analysis_pair ON analysis FIELDS user_id, conversation_id UNIQUE;

    -- ==========================================================================
    -- PROFILE TABLE (record id = user id, single row per user)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS profile SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON profile TYPE string;
    DEFINE FIELD IF NOT EXISTS profile_data ON profile TYPE object FLEXIBLE DEFAULT {};
    DEFINE FIELD IF NOT EXISTS conversation_count ON profile TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS message_count ON profile TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS version ON profile TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS ai_summary ON profile TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS ai_summary_version ON profile TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS ai_summary_updated ON profile TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS created_at ON profile TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON profile TYPE datetime DEFAULT time::now();

    -- ==========================================================================
    -- JOB TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS job SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON job TYPE string;
    DEFINE FIELD IF NOT EXISTS job_type ON job TYPE string DEFAULT "memory_processing";
    DEFINE FIELD IF NOT EXISTS status ON job TYPE string
        ASSERT $value IN ["pending", "processing", "completed", "failed"];
    DEFINE FIELD IF NOT EXISTS total_conversations ON job TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS processed_conversations ON job TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS progress_percentage ON job TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS batch_size ON job TYPE int DEFAULT 10;
    DEFINE FIELD IF NOT EXISTS error ON job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS processing_details ON job TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created_at ON job TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS started_at ON job TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS completed_at ON job TYPE option<datetime>;

    DEFINE INDEX IF NOT EXISTS job_user ON job FIELDS user_id;
    DEFINE INDEX IF NOT EXISTS job_status ON job FIELDS status;
`
