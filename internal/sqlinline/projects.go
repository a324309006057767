package sqlinline

const QUpsertProject = `--sql a5d08326-3c28-4a51-8a1e-4456035edab1
insert into projects (id, name, config, created_at, updated_at)
values ($1::text, $2::text, $3::jsonb, now(), now())
on conflict (id) do update set
    name = excluded.name,
    config = excluded.config,
    updated_at = now();
`

const QDeleteSections = `--sql d07f783c-f239-4455-b02d-f692adfcf22a
delete from sections
where project_id = $1::text;
`

const QInsertSection = `--sql 62348fcd-a5fb-4860-b0e1-6b851b4130dc
insert into sections (project_id, id, position, name, description, image_count)
values ($1::text, $2::text, $3::int, $4::text, $5::text, $6::int);
`

const QUpdateBatchStatus = `--sql c55c137c-03bd-4dc1-b64a-b5a769e3c452
update projects
set batch_status = $2::text,
    updated_at = now()
where id = $1::text;
`

const QSelectProject = `--sql 6cc69434-3554-4fb4-bf57-3874edc163a9
select config, batch_status, updated_at
from projects
where id = $1::text;
`

const QInsertStyleReference = `--sql 7cc2e772-5917-4bb1-ae5d-346fb88d7106
insert into style_references (id, project_id, image_count, style_prompt, created_at)
values ($1::uuid, $2::text, $3::int, $4::text, $5::timestamptz);
`
