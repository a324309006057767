package sqlinline

// Schema statements run in order by repo.EnsureSchema. Each is idempotent.
var Schema = []string{QCreateProjects, QCreateSections, QCreateGeneratedImages, QCreateStyleReferences, QCreateIntegrationTokens}

const QCreateProjects = `--sql 26d35f8d-66ce-4f55-a8fc-c35be159a95d
create table if not exists projects (
    id text primary key,
    name text not null,
    config jsonb not null,
    batch_status text not null default 'IDLE',
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`

const QCreateSections = `--sql 669e3cf1-97e0-4a58-b664-c68c4add9cf6
create table if not exists sections (
    project_id text not null references projects(id) on delete cascade,
    id text not null,
    position int not null,
    name text not null,
    description text not null default '',
    image_count int not null,
    primary key (project_id, id)
);
`

const QCreateGeneratedImages = `--sql 74ce8566-90c7-4a9e-ae8e-44684a2f4546
create table if not exists generated_images (
    project_id text not null references projects(id) on delete cascade,
    id text not null,
    section_id text not null,
    position int not null,
    prompt text not null,
    status text not null,
    error text not null default '',
    mime_type text not null default '',
    image_data text not null default '',
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now(),
    primary key (project_id, id)
);
`

const QCreateStyleReferences = `--sql 6c7b9ec5-181e-4ac2-9552-cfeb68d10cf3
create table if not exists style_references (
    id uuid primary key,
    project_id text not null references projects(id) on delete cascade,
    image_count int not null,
    style_prompt text not null,
    created_at timestamptz not null default now()
);
`

const QCreateIntegrationTokens = `--sql 904f06e3-74b0-49d1-96a7-6c7aad1ebd09
create table if not exists integration_tokens (
    id uuid primary key,
    provider text not null unique,
    token text not null,
    properties jsonb not null default '{}'::jsonb,
    created_at timestamptz not null default now(),
    updated_at timestamptz not null default now()
);
`
